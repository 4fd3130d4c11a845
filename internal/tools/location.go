package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

const confirmLocationSchema = `
{
  "type": "object",
  "properties": {
    "name": { "type": "string", "description": "Area or neighbourhood name as the user said it" },
    "radius_km": { "type": "number", "description": "Search radius in km, optional" }
  },
  "required": ["name"]
}
`

// ConfirmLocation resolves a freeform area name against the known areas and
// writes a validated LocationState. It is the only writer of that state.
type ConfirmLocation struct {
	areas AreaFinder
}

func NewConfirmLocation(areas AreaFinder) *ConfirmLocation {
	return &ConfirmLocation{areas: areas}
}

func (c *ConfirmLocation) Name() string { return "confirm_location" }

func (c *ConfirmLocation) Description() string {
	return "Confirm the area the user wants to search in. Must succeed before any listing search."
}

func (c *ConfirmLocation) Schema() json.RawMessage {
	return json.RawMessage(confirmLocationSchema)
}

func (c *ConfirmLocation) Handle(ctx context.Context, args map[string]any, _ *notepad.Notepad) (any, *notepad.Update, error) {
	name := strings.TrimSpace(stringArg(args, "name"))
	if name == "" {
		return nil, nil, fmt.Errorf("missing required argument: name")
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	matches, err := c.areas.FindAreas(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("area lookup failed: %w", err)
	}
	if len(matches) == 0 {
		return map[string]any{
			"confirmed": false,
			"message":   fmt.Sprintf("no known area matches %q; ask the user for a nearby city or district", name),
		}, nil, nil
	}

	area := matches[0]
	radius := floatArg(args, "radius_km")
	if radius <= 0 {
		radius = area.RadiusKM
	}

	loc := &notepad.LocationState{
		City:      area.City,
		District:  area.Name,
		Lat:       area.Lat,
		Lon:       area.Lon,
		RadiusKM:  radius,
		Matched:   len(matches),
		Validated: true,
	}

	result := map[string]any{
		"confirmed": true,
		"city":      area.City,
		"district":  area.Name,
		"matched":   len(matches),
		"radius_km": radius,
	}
	return result, &notepad.Update{Location: loc}, nil
}

var _ core.Handler = (*ConfirmLocation)(nil)
