package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

const getListingSchema = `
{
  "type": "object",
  "properties": {
    "listing_id": { "type": "string", "description": "Exact listing id" },
    "ref": { "type": "string", "description": "Human reference into the current results, e.g. \"2\" or \"the second one\"" }
  }
}
`

// GetListing fetches full details for one listing. References like "the
// second one" are resolved to a listing id before this handler runs.
type GetListing struct {
	listings ListingFinder
}

func NewGetListing(listings ListingFinder) *GetListing {
	return &GetListing{listings: listings}
}

func (g *GetListing) Name() string { return "get_listing" }

func (g *GetListing) Description() string {
	return "Show full details for one listing from the current search results."
}

func (g *GetListing) Schema() json.RawMessage {
	return json.RawMessage(getListingSchema)
}

func (g *GetListing) Handle(ctx context.Context, args map[string]any, _ *notepad.Notepad) (any, *notepad.Update, error) {
	id := stringArg(args, "listing_id")
	if id == "" {
		return nil, nil, fmt.Errorf("missing listing_id or ref")
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	listing, err := g.listings.Get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing lookup failed: %w", err)
	}
	if listing == nil {
		return nil, nil, fmt.Errorf("listing %s no longer exists", id)
	}

	result := map[string]any{
		"id":            listing.ID,
		"title":         listing.Title,
		"address":       listing.Address,
		"city":          listing.City,
		"price":         listing.Price,
		"bedrooms":      listing.Bedrooms,
		"area_sqm":      listing.AreaSqm,
		"property_type": listing.PropertyType,
	}
	return result, nil, nil
}

var _ core.Handler = (*GetListing)(nil)
