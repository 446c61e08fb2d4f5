package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// Статусы заказа. "pending" остался от старых записей и читается как "new".
const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"

	orderStatusLegacyPending OrderStatus = "pending"
)

// RetentionPeriod is how long a soft-deleted order stays recoverable.
const RetentionPeriod = 30 * 24 * time.Hour

// ParseOrderStatus maps a raw status value to a known status.
// Empty and legacy "pending" values become OrderStatusNew.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "", orderStatusLegacyPending:
		return OrderStatusNew, true
	case OrderStatusNew, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return s, true
	default:
		return s, false
	}
}

type Client struct {
	Name           string `json:"name,omitempty"`
	Surname        string `json:"surname,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	Department     string `json:"department,omitempty"`
	Identification string `json:"identification,omitempty"`
}

// FullName склеивает имя и фамилию, пустые части пропускаются.
func (c *Client) FullName() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(strings.Join([]string{c.Name, c.Surname}, " "))
}

type CartItem struct {
	ProductID     string           `json:"productId,omitempty"`
	Name          string           `json:"name,omitempty"`
	Brand         string           `json:"brand,omitempty"`
	Quantity      int              `json:"quantity,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Price1        *decimal.Decimal `json:"price1,omitempty"`
	Price2        *decimal.Decimal `json:"price2,omitempty"`
	SelectedColor string           `json:"selectedColor,omitempty"`
	PhotoKey      string           `json:"photoKey,omitempty"`
}

// Order: документ заказа в том виде, в каком он лежит в хранилище.
// Почти все поля опциональны: старые записи заполнены как попало.
type Order struct {
	ID     string      `json:"id"`
	Status OrderStatus `json:"status,omitempty"`
	Client *Client     `json:"client,omitempty"`

	OrderDetails string `json:"orderDetails,omitempty"`
	Comentario   string `json:"comentario,omitempty"`

	CartItems   []CartItem       `json:"cartItems,omitempty"`
	Items       []CartItem       `json:"items,omitempty"`
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
	PriceType   string           `json:"priceType,omitempty"`

	Labels    []string `json:"labels,omitempty"`
	Archived  bool     `json:"archived,omitempty"`
	IsStarred bool     `json:"isStarred,omitempty"`

	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	RestoredAt *time.Time `json:"restoredAt,omitempty"`

	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	RetentionDate *time.Time `json:"retentionDate,omitempty"`
	OriginalID    string     `json:"originalId,omitempty"`
}

// EffectiveStatus returns the status with legacy values mapped.
func (o *Order) EffectiveStatus() OrderStatus {
	s, _ := ParseOrderStatus(string(o.Status))
	return s
}

// LineItems returns cartItems, falling back to items for older orders.
func (o *Order) LineItems() []CartItem {
	if len(o.CartItems) > 0 {
		return o.CartItems
	}
	return o.Items
}

// EffectiveRetentionDate returns retentionDate, deriving it from deletedAt
// for records written without one. ok is false when neither is present.
func (o *Order) EffectiveRetentionDate() (time.Time, bool) {
	if o.RetentionDate != nil {
		return *o.RetentionDate, true
	}
	if o.DeletedAt != nil {
		return o.DeletedAt.Add(RetentionPeriod), true
	}
	return time.Time{}, false
}

// StripDeletion убирает служебные поля удаления.
func (o *Order) StripDeletion() {
	o.DeletedAt = nil
	o.RetentionDate = nil
	o.OriginalID = ""
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (o *Order) Clone() *Order {
	c := *o
	if o.Client != nil {
		cl := *o.Client
		c.Client = &cl
	}
	c.CartItems = cloneItems(o.CartItems)
	c.Items = cloneItems(o.Items)
	if o.Labels != nil {
		c.Labels = append([]string(nil), o.Labels...)
	}
	c.TotalAmount = cloneDecimal(o.TotalAmount)
	c.CreatedAt = cloneTime(o.CreatedAt)
	c.RestoredAt = cloneTime(o.RestoredAt)
	c.DeletedAt = cloneTime(o.DeletedAt)
	c.RetentionDate = cloneTime(o.RetentionDate)
	return &c
}

func cloneItems(in []CartItem) []CartItem {
	if in == nil {
		return nil
	}
	out := make([]CartItem, len(in))
	for i, it := range in {
		it.Price = cloneDecimal(it.Price)
		it.Price1 = cloneDecimal(it.Price1)
		it.Price2 = cloneDecimal(it.Price2)
		out[i] = it
	}
	return out
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// OrderPatch: изменения "на месте" для активного заказа. nil означает "не трогать".
type OrderPatch struct {
	Status    *OrderStatus `json:"status,omitempty"`
	Labels    *[]string    `json:"labels,omitempty"`
	Archived  *bool        `json:"archived,omitempty"`
	IsStarred *bool        `json:"isStarred,omitempty"`
}
