package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

const captureLeadSchema = `
{
  "type": "object",
  "properties": {
    "name": { "type": "string", "description": "The user's name" },
    "phone": { "type": "string", "description": "Phone number" },
    "email": { "type": "string", "description": "Email address" },
    "note": { "type": "string", "description": "What the user is interested in" },
    "listing_id": { "type": "string", "description": "Listing the enquiry is about, optional" }
  },
  "required": ["name"]
}
`

// CaptureLead records a contact request. Gated on contact info being
// present in the arguments.
type CaptureLead struct {
	leads LeadWriter
}

func NewCaptureLead(leads LeadWriter) *CaptureLead {
	return &CaptureLead{leads: leads}
}

func (c *CaptureLead) Name() string { return "capture_lead" }

func (c *CaptureLead) Description() string {
	return "Record the user's contact details so an agent can follow up."
}

func (c *CaptureLead) Schema() json.RawMessage {
	return json.RawMessage(captureLeadSchema)
}

func (c *CaptureLead) Handle(ctx context.Context, args map[string]any, _ *notepad.Notepad) (any, *notepad.Update, error) {
	name := strings.TrimSpace(stringArg(args, "name"))
	phone := strings.TrimSpace(stringArg(args, "phone"))
	email := strings.TrimSpace(stringArg(args, "email"))

	if name == "" {
		return nil, nil, fmt.Errorf("missing required argument: name")
	}
	if phone == "" && email == "" {
		// Gated anyway; handlers validate defensively regardless.
		return nil, nil, fmt.Errorf("need a phone number or email address")
	}

	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	id, err := c.leads.Insert(ctx, core.Lead{
		Name:      name,
		Phone:     phone,
		Email:     email,
		Note:      stringArg(args, "note"),
		ListingID: stringArg(args, "listing_id"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record lead: %w", err)
	}

	facts := map[string]string{"contact_name": name}
	if phone != "" {
		facts["contact_phone"] = phone
	}
	if email != "" {
		facts["contact_email"] = email
	}

	result := map[string]any{"recorded": true, "lead_id": id}
	return result, &notepad.Update{Facts: facts}, nil
}

var _ core.Handler = (*CaptureLead)(nil)
