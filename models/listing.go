package models

import "time"

// DefaultCurrency is the only currency the source market lists prices in.
const DefaultCurrency = "EUR"

// ListingRecord is one observed state of a classified ad.
// Optional attributes are pointers: nil means the value could not be
// extracted, which is different from zero.
type ListingRecord struct {
	ExternalID   string   `json:"external_id" yaml:"external_id" validate:"required,max=50"`
	Title        string   `json:"title" yaml:"title" validate:"required,max=500"`
	Price        *float64 `json:"price" yaml:"price" validate:"omitempty,gte=0"`
	Currency     *string  `json:"currency" yaml:"currency" validate:"omitempty,len=3"`
	Location     *string  `json:"location" yaml:"location"`
	SellerName   *string  `json:"seller_name" yaml:"seller_name"`
	SellerType   *string  `json:"seller_type" yaml:"seller_type" validate:"omitempty,oneof=private dealer"`
	Description  *string  `json:"description" yaml:"description"`
	Brand        *string  `json:"brand" yaml:"brand"`
	Model        *string  `json:"model" yaml:"model"`
	Year         *int     `json:"year" yaml:"year" validate:"omitempty,gte=1900,lte=2099"`
	MileageKm    *int     `json:"mileage_km" yaml:"mileage_km" validate:"omitempty,gte=0"`
	FuelType     *string  `json:"fuel_type" yaml:"fuel_type"`
	Transmission *string  `json:"transmission" yaml:"transmission"`
	EngineCC     *int     `json:"engine_cc" yaml:"engine_cc" validate:"omitempty,gte=0"`
	Color        *string  `json:"color" yaml:"color"`
	ImageURLs    []string `json:"image_urls" yaml:"image_urls"`
	SourceURL    string   `json:"source_url" yaml:"source_url" validate:"required,url"`

	FirstSeenAt time.Time `json:"first_seen_at" yaml:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" yaml:"last_seen_at" validate:"gtefield=FirstSeenAt"`
	Active      bool      `json:"active" yaml:"active"`
}

// CopyMutable overwrites every field an observation can change with the
// values from src. Identity and history (ExternalID, FirstSeenAt) stay.
func (r *ListingRecord) CopyMutable(src *ListingRecord) {
	r.Title = src.Title
	r.Price = src.Price
	r.Currency = src.Currency
	r.Location = src.Location
	r.SellerName = src.SellerName
	r.SellerType = src.SellerType
	r.Description = src.Description
	r.Brand = src.Brand
	r.Model = src.Model
	r.Year = src.Year
	r.MileageKm = src.MileageKm
	r.FuelType = src.FuelType
	r.Transmission = src.Transmission
	r.EngineCC = src.EngineCC
	r.Color = src.Color
	r.ImageURLs = append([]string(nil), src.ImageURLs...)
	r.SourceURL = src.SourceURL
}

// Clone returns a deep copy so stores never share pointers with callers.
func (r *ListingRecord) Clone() *ListingRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Price = clonePtr(r.Price)
	c.Currency = clonePtr(r.Currency)
	c.Location = clonePtr(r.Location)
	c.SellerName = clonePtr(r.SellerName)
	c.SellerType = clonePtr(r.SellerType)
	c.Description = clonePtr(r.Description)
	c.Brand = clonePtr(r.Brand)
	c.Model = clonePtr(r.Model)
	c.Year = clonePtr(r.Year)
	c.MileageKm = clonePtr(r.MileageKm)
	c.FuelType = clonePtr(r.FuelType)
	c.Transmission = clonePtr(r.Transmission)
	c.EngineCC = clonePtr(r.EngineCC)
	c.Color = clonePtr(r.Color)
	c.ImageURLs = append([]string{}, r.ImageURLs...)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. Handy for building optional fields.
func Ptr[T any](v T) *T {
	return &v
}

// InsightReport holds the computed analytics over stored listings.
type InsightReport struct {
	TotalListings      int
	ActiveListings     int
	PricedListings     int
	AveragePrice       float64
	MedianPrice        float64
	MinPrice           float64
	MaxPrice           float64
	MostExpensive      *ListingRecord
	RecentListings     int
	TopSellers         []SellerCount
	ListingsByLocation map[string]LocationStat
}

// SellerCount is one row of the top sellers ranking.
type SellerCount struct {
	Seller string
	Count  int
}

// LocationStat aggregates listings sharing a location.
type LocationStat struct {
	Count        int
	AveragePrice float64
}
