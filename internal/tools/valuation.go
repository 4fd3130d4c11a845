package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

const estimateValueSchema = `
{
  "type": "object",
  "properties": {
    "listing_id": { "type": "string", "description": "Exact listing id" },
    "ref": { "type": "string", "description": "Human reference into the current results" }
  }
}
`

const comparableLimit = 10

// EstimateValue prices a listing against comparable sales nearby: same
// property type, within the confirmed radius, averaged per square metre.
type EstimateValue struct {
	listings ListingFinder
}

func NewEstimateValue(listings ListingFinder) *EstimateValue {
	return &EstimateValue{listings: listings}
}

func (e *EstimateValue) Name() string { return "estimate_value" }

func (e *EstimateValue) Description() string {
	return "Estimate a fair price for a listing from comparable listings nearby."
}

func (e *EstimateValue) Schema() json.RawMessage {
	return json.RawMessage(estimateValueSchema)
}

func (e *EstimateValue) Handle(ctx context.Context, args map[string]any, _ *notepad.Notepad) (any, *notepad.Update, error) {
	id := stringArg(args, "listing_id")
	if id == "" {
		return nil, nil, fmt.Errorf("missing listing_id or ref")
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	listing, err := e.listings.Get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing lookup failed: %w", err)
	}
	if listing == nil {
		return nil, nil, fmt.Errorf("listing %s no longer exists", id)
	}
	if listing.AreaSqm <= 0 {
		return nil, nil, fmt.Errorf("listing %s has no usable floor area", id)
	}

	comps, err := e.listings.Comparables(ctx, listing.Lat, listing.Lon, 3.0, listing.PropertyType, comparableLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("comparable lookup failed: %w", err)
	}

	var sumPerSqm float64
	n := 0
	for _, c := range comps {
		if c.ID == listing.ID || c.AreaSqm <= 0 {
			continue
		}
		sumPerSqm += float64(c.Price) / c.AreaSqm
		n++
	}
	if n == 0 {
		return map[string]any{
			"listing_id": id,
			"estimate":   nil,
			"message":    "not enough comparable listings nearby for an estimate",
		}, nil, nil
	}

	perSqm := sumPerSqm / float64(n)
	estimate := int64(math.Round(perSqm * listing.AreaSqm))

	result := map[string]any{
		"listing_id":    id,
		"asking_price":  listing.Price,
		"estimate":      estimate,
		"per_sqm":       math.Round(perSqm),
		"comparables":   n,
		"delta_percent": math.Round((float64(listing.Price) - float64(estimate)) / float64(estimate) * 100),
	}
	return result, nil, nil
}

var _ core.Handler = (*EstimateValue)(nil)
