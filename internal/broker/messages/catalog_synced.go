package messages

// CatalogSynced приходит от синхронизатора каталога, когда он закончил выгрузку.
type CatalogSynced struct {
	Type string `json:"type"`
	// Timestamp is RFC3339; empty means "now" on the receiving side.
	Timestamp string `json:"timestamp,omitempty"`
}
