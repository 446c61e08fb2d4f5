package models

import "github.com/shopspring/decimal"

// Откуда взялась сумма заказа в нормализованном виде.
const (
	TotalSourceItems   = "items"
	TotalSourceDetails = "details"
	TotalSourceStored  = "stored"
	TotalSourceNone    = "none"
)

const (
	PriceTier1 = "Precio 1"
	PriceTier2 = "Precio 2"
)

type OrderViewItem struct {
	ProductID string          `json:"productId,omitempty"`
	Name      string          `json:"name,omitempty"`
	Brand     string          `json:"brand,omitempty"`
	Color     string          `json:"color,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	PhotoKey  string          `json:"photoKey,omitempty"`
	PhotoURL  string          `json:"photoUrl,omitempty"`
}

// OrderView: единое представление заказа для списков, карточек и подсчёта сумм.
type OrderView struct {
	ID          string          `json:"id"`
	Status      OrderStatus     `json:"status"`
	ClientName  string          `json:"clientName,omitempty"`
	Total       decimal.Decimal `json:"total"`
	TotalSource string          `json:"totalSource"`
	PriceTier   string          `json:"priceTier,omitempty"`
	Comment     string          `json:"comment,omitempty"`
	Brand       string          `json:"brand,omitempty"`
	Color       string          `json:"color,omitempty"`
	Items       []OrderViewItem `json:"items,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
	Archived    bool            `json:"archived"`
	IsStarred   bool            `json:"isStarred"`
}
