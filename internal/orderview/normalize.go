// Package orderview converts stored order documents, including legacy ones,
// into the single view every admin screen and total calculation reads from.
package orderview

import (
	"strings"

	"github.com/BearBump/OrderBox/internal/models"
	"github.com/shopspring/decimal"
)

// NormalizePriceTier maps "1"/"Precio 1" and "2"/"Precio 2" to the canonical
// tier names. Anything else is returned trimmed but otherwise verbatim.
func NormalizePriceTier(raw string) string {
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "1", "precio 1":
		return models.PriceTier1
	case "2", "precio 2":
		return models.PriceTier2
	}
	return v
}

// Normalize is pure and deterministic: the same document always yields the same view.
// Total precedence: line items, then the legacy details text, then totalAmount.
func Normalize(o *models.Order) models.OrderView {
	text := o.OrderDetails
	if strings.TrimSpace(text) == "" {
		text = o.Comentario
	}
	det := ParseDetails(text)

	tier := NormalizePriceTier(o.PriceType)
	if tier == "" {
		tier = NormalizePriceTier(det.Type)
	}

	v := models.OrderView{
		ID:          o.ID,
		Status:      o.EffectiveStatus(),
		ClientName:  o.Client.FullName(),
		Total:       decimal.Zero,
		TotalSource: models.TotalSourceNone,
		PriceTier:   tier,
		Comment:     det.Comment,
		Labels:      append([]string(nil), o.Labels...),
		Archived:    o.Archived,
		IsStarred:   o.IsStarred,
	}
	if v.ClientName == "" {
		v.ClientName = det.Client
	}

	items := o.LineItems()
	for _, it := range items {
		vi := viewItem(it, tier)
		v.Items = append(v.Items, vi)
		if v.Brand == "" {
			v.Brand = vi.Brand
		}
		if v.Color == "" {
			v.Color = vi.Color
		}
	}
	if v.Brand == "" {
		v.Brand = det.Brand
	}
	if v.Color == "" {
		v.Color = det.Color
	}

	switch {
	case len(items) > 0:
		total := decimal.Zero
		for _, vi := range v.Items {
			total = total.Add(vi.LineTotal)
		}
		v.Total = total
		v.TotalSource = models.TotalSourceItems
	case det.Total != nil:
		v.Total = decimal.NewFromInt(*det.Total)
		v.TotalSource = models.TotalSourceDetails
	case o.TotalAmount != nil:
		v.Total = *o.TotalAmount
		v.TotalSource = models.TotalSourceStored
	}
	return v
}

// Total is a shortcut for Normalize(o).Total.
func Total(o *models.Order) decimal.Decimal {
	return Normalize(o).Total
}

func viewItem(it models.CartItem, tier string) models.OrderViewItem {
	qty := it.Quantity
	if qty <= 0 {
		qty = 1
	}
	unit := unitPrice(it, tier)
	return models.OrderViewItem{
		ProductID: it.ProductID,
		Name:      it.Name,
		Brand:     it.Brand,
		Color:     it.SelectedColor,
		Quantity:  qty,
		UnitPrice: unit,
		LineTotal: unit.Mul(decimal.NewFromInt(int64(qty))),
		PhotoKey:  it.PhotoKey,
	}
}

func unitPrice(it models.CartItem, tier string) decimal.Decimal {
	switch {
	case tier == models.PriceTier1 && it.Price1 != nil:
		return *it.Price1
	case tier == models.PriceTier2 && it.Price2 != nil:
		return *it.Price2
	case it.Price != nil:
		return *it.Price
	}
	return decimal.Zero
}
