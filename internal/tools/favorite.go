package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

const saveFavoriteSchema = `
{
  "type": "object",
  "properties": {
    "listing_id": { "type": "string", "description": "Exact listing id" },
    "ref": { "type": "string", "description": "Human reference into the current results" }
  }
}
`

// SaveFavorite pins a listing on the notepad. Saving the same listing twice
// is a no-op.
type SaveFavorite struct {
	listings ListingFinder
}

func NewSaveFavorite(listings ListingFinder) *SaveFavorite {
	return &SaveFavorite{listings: listings}
}

func (s *SaveFavorite) Name() string { return "save_favorite" }

func (s *SaveFavorite) Description() string {
	return "Save a listing from the current results to the user's favorites."
}

func (s *SaveFavorite) Schema() json.RawMessage {
	return json.RawMessage(saveFavoriteSchema)
}

func (s *SaveFavorite) Handle(ctx context.Context, args map[string]any, pad *notepad.Notepad) (any, *notepad.Update, error) {
	id := stringArg(args, "listing_id")
	if id == "" {
		return nil, nil, fmt.Errorf("missing listing_id or ref")
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	listing, err := s.listings.Get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing lookup failed: %w", err)
	}
	if listing == nil {
		return nil, nil, fmt.Errorf("listing %s no longer exists", id)
	}

	already := false
	for _, f := range pad.Favorites {
		if f == id {
			already = true
			break
		}
	}

	result := map[string]any{
		"saved":         true,
		"listing_id":    id,
		"title":         listing.Title,
		"already_saved": already,
	}
	return result, &notepad.Update{Favorites: []string{id}}, nil
}

var _ core.Handler = (*SaveFavorite)(nil)
