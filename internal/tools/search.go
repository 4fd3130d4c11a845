package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

const defaultPageSize = 5

const searchListingsSchema = `
{
  "type": "object",
  "properties": {
    "max_price": { "type": "integer", "description": "Upper price bound, optional" },
    "min_bedrooms": { "type": "integer", "description": "Minimum number of bedrooms, optional" },
    "property_type": { "type": "string", "description": "flat, house or any; optional" }
  }
}
`

// SearchListings queries listings around the confirmed location. The result
// page is stored externally; only a handle plus a compact preview go back to
// the conversation.
type SearchListings struct {
	listings ListingFinder
	pages    SearchPager
}

func NewSearchListings(listings ListingFinder, pages SearchPager) *SearchListings {
	return &SearchListings{listings: listings, pages: pages}
}

func (s *SearchListings) Name() string { return "search_listings" }

func (s *SearchListings) Description() string {
	return "Search listings around the confirmed location with optional price, bedroom and type filters."
}

func (s *SearchListings) Schema() json.RawMessage {
	return json.RawMessage(searchListingsSchema)
}

type listingPreview struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    int64  `json:"price"`
	Bedrooms int    `json:"bedrooms"`
}

func (s *SearchListings) Handle(ctx context.Context, args map[string]any, pad *notepad.Notepad) (any, *notepad.Update, error) {
	loc := pad.Location
	if !loc.Validated {
		// Gated anyway; guard again because handlers trust nothing.
		return nil, nil, fmt.Errorf("no confirmed location")
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	q := ListingQuery{
		Lat:          loc.Lat,
		Lon:          loc.Lon,
		RadiusKM:     loc.RadiusKM,
		MaxPrice:     int64(intArg(args, "max_price")),
		MinBedrooms:  intArg(args, "min_bedrooms"),
		PropertyType: stringArg(args, "property_type"),
		Limit:        defaultPageSize,
	}

	page, total, err := s.listings.Search(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("listing search failed: %w", err)
	}

	searchID := uuid.NewString()
	ids := make([]string, 0, len(page))
	previews := make([]listingPreview, 0, len(page))
	for i, l := range page {
		ids = append(ids, l.ID)
		previews = append(previews, listingPreview{
			Position: i + 1, ID: l.ID, Title: l.Title, Price: l.Price, Bedrooms: l.Bedrooms,
		})
	}

	if err := s.pages.SavePage(ctx, searchID, ids); err != nil {
		return nil, nil, fmt.Errorf("failed to store result page: %w", err)
	}

	handle := &notepad.SearchHandle{
		ID:         searchID,
		TotalCount: total,
		PageSize:   defaultPageSize,
		Page:       1,
		Filters:    filtersOf(q),
		ExecutedAt: time.Now().UTC(),
	}

	result := map[string]any{
		"total":     total,
		"search_id": searchID,
		"page":      previews,
	}
	return result, &notepad.Update{Search: handle}, nil
}

func filtersOf(q ListingQuery) map[string]string {
	f := make(map[string]string)
	if q.MaxPrice > 0 {
		f["max_price"] = strconv.FormatInt(q.MaxPrice, 10)
	}
	if q.MinBedrooms > 0 {
		f["min_bedrooms"] = strconv.Itoa(q.MinBedrooms)
	}
	if q.PropertyType != "" {
		f["property_type"] = q.PropertyType
	}
	return f
}

var _ core.Handler = (*SearchListings)(nil)
