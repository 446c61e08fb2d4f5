package models

type SyncType string

const (
	SyncTypeProducts  SyncType = "products"
	SyncTypeWebPhotos SyncType = "webphotos"
)

// SyncTypes is the fixed set of tracked sync keys.
var SyncTypes = []SyncType{SyncTypeProducts, SyncTypeWebPhotos}

func (t SyncType) Valid() bool {
	return t == SyncTypeProducts || t == SyncTypeWebPhotos
}

// SyncTimestamps: текущие метки синхронизации. nil значит "ещё ни разу не писали".
type SyncTimestamps struct {
	Products  *string `json:"products"`
	WebPhotos *string `json:"webphotos"`
}

func (s SyncTimestamps) Get(t SyncType) *string {
	switch t {
	case SyncTypeProducts:
		return s.Products
	case SyncTypeWebPhotos:
		return s.WebPhotos
	}
	return nil
}

func (s *SyncTimestamps) Set(t SyncType, v *string) {
	switch t {
	case SyncTypeProducts:
		s.Products = v
	case SyncTypeWebPhotos:
		s.WebPhotos = v
	}
}
