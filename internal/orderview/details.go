package orderview

import (
	"strconv"
	"strings"
)

// Details: то, что удалось вытащить из старого текстового поля orderDetails/comentario.
type Details struct {
	Total   *int64
	Client  string
	Type    string
	Comment string
	Brand   string
	Color   string
}

const (
	fieldTotal   = "total"
	fieldClient  = "client"
	fieldType    = "type"
	fieldComment = "comment"
	fieldBrand   = "brand"
	fieldColor   = "color"
)

// Все написания ключей, которые встречались в старых заказах (после lower-case).
var detailKeys = map[string]string{
	"total":       fieldTotal,
	"valor total": fieldTotal,
	"cliente":     fieldClient,
	"client":      fieldClient,
	"tipo":        fieldType,
	"type":        fieldType,
	"precio":      fieldType,
	"price type":  fieldType,
	"comentario":  fieldComment,
	"comentarios": fieldComment,
	"comment":     fieldComment,
	"nota":        fieldComment,
	"marca":       fieldBrand,
	"brand":       fieldBrand,
	"color":       fieldColor,
	"colour":      fieldColor,
}

// ParseDetails parses "key: value | key: value" text. Unknown keys and
// segments without a colon are ignored; the first occurrence of a key wins.
func ParseDetails(text string) Details {
	var d Details
	seen := map[string]bool{}
	for _, seg := range strings.Split(text, "|") {
		k, v, ok := strings.Cut(seg, ":")
		if !ok {
			continue
		}
		field, known := detailKeys[strings.ToLower(strings.TrimSpace(k))]
		if !known || seen[field] {
			continue
		}
		v = strings.TrimSpace(v)
		switch field {
		case fieldTotal:
			n, ok := parseAmount(v)
			if !ok {
				continue
			}
			d.Total = &n
		case fieldClient:
			d.Client = v
		case fieldType:
			d.Type = v
		case fieldComment:
			d.Comment = v
		case fieldBrand:
			d.Brand = v
		case fieldColor:
			d.Color = v
		}
		seen[field] = true
	}
	return d
}

// parseAmount strips currency signs, spaces and thousands separators
// ("$ 50.000", "50,000") and parses the rest as an integer.
func parseAmount(s string) (int64, bool) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', ' ', '$', '\u00a0':
			return -1
		}
		return r
	}, s)
	if clean == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
