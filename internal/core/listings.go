package core

import "time"

// Area is a known administrative area the assistant can confirm a location
// against.
type Area struct {
	ID       int64
	Name     string
	City     string
	Lat      float64
	Lon      float64
	RadiusKM float64
}

type Listing struct {
	ID           string
	Title        string
	Address      string
	City         string
	Lat          float64
	Lon          float64
	Price        int64
	Bedrooms     int
	AreaSqm      float64
	PropertyType string
}

type Lead struct {
	ID        int64
	Name      string
	Phone     string
	Email     string
	Note      string
	ListingID string
	CreatedAt time.Time
}
