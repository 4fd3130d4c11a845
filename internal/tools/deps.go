// Package tools holds the domain tool handlers the executor dispatches to.
// Each handler validates its own input, enforces its own timeout, and hands
// state changes back as a notepad update.
package tools

import (
	"context"
	"time"

	"github.com/sandevgo/roostbot/internal/core"
)

const handlerTimeout = 10 * time.Second

type ListingQuery struct {
	Lat          float64
	Lon          float64
	RadiusKM     float64
	MaxPrice     int64
	MinBedrooms  int
	PropertyType string
	Limit        int
}

type AreaFinder interface {
	FindAreas(ctx context.Context, name string) ([]core.Area, error)
}

type ListingFinder interface {
	Search(ctx context.Context, q ListingQuery) ([]core.Listing, int, error)
	Get(ctx context.Context, id string) (*core.Listing, error)
	Comparables(ctx context.Context, lat, lon, radiusKM float64, propertyType string, limit int) ([]core.Listing, error)
}

type SearchPager interface {
	SavePage(ctx context.Context, searchID string, ids []string) error
}

type LeadWriter interface {
	Insert(ctx context.Context, lead core.Lead) (int64, error)
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func floatArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
