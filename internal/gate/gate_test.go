package gate

import (
	"testing"

	"github.com/sandevgo/roostbot/internal/notepad"
)

func TestCheck_UndeclaredToolPasses(t *testing.T) {
	ev := NewEvaluator()
	d := ev.Check("anything", notepad.New(), nil)
	if !d.Allowed {
		t.Errorf("expected allow, got %+v", d)
	}
}

func TestCheck_PathTrue(t *testing.T) {
	ev := NewEvaluator()
	ev.Declare("search_listings", Gate{
		Name:   "location_confirmed",
		Pred:   PathTrue("location.validated"),
		Reason: "No confirmed location yet.",
		Hint:   "Call confirm_location first.",
	})

	pad := notepad.New()
	d := ev.Check("search_listings", pad, nil)
	if d.Allowed {
		t.Fatal("expected deny on unvalidated location")
	}
	if d.Gate != "location_confirmed" || d.Hint != "Call confirm_location first." {
		t.Errorf("wrong decision: %+v", d)
	}

	pad.Apply(&notepad.Update{Location: &notepad.LocationState{City: "Riverside", Validated: true}})
	if d := ev.Check("search_listings", pad, nil); !d.Allowed {
		t.Errorf("expected allow after confirmation, got %+v", d)
	}
}

func TestCheck_FirstFailingGateWins(t *testing.T) {
	ev := NewEvaluator()
	secondEvaluated := false
	ev.Declare("save_favorite",
		Gate{
			Name:   "first",
			Pred:   func(*notepad.Notepad, map[string]any) bool { return false },
			Reason: "first gate failed",
		},
		Gate{
			Name: "second",
			Pred: func(*notepad.Notepad, map[string]any) bool {
				secondEvaluated = true
				return false
			},
			Reason: "second gate failed",
		},
	)

	d := ev.Check("save_favorite", notepad.New(), nil)
	if d.Allowed {
		t.Fatal("expected deny")
	}
	if d.Reason != "first gate failed" {
		t.Errorf("deny should carry the first gate's message, got %q", d.Reason)
	}
	if secondEvaluated {
		t.Error("second gate must not be evaluated after the first fails")
	}
}

func TestCheck_ArgsAnyPresent(t *testing.T) {
	ev := NewEvaluator()
	ev.Declare("capture_lead", Gate{
		Name:   "contact_present",
		Pred:   ArgsAnyPresent("phone", "email"),
		Reason: "No contact information provided.",
		Hint:   "Ask for a phone number or email address.",
	})

	pad := notepad.New()
	tests := []struct {
		name  string
		args  map[string]any
		allow bool
	}{
		{"no args", nil, false},
		{"empty string", map[string]any{"phone": ""}, false},
		{"phone present", map[string]any{"phone": "+4915112345"}, true},
		{"email present", map[string]any{"email": "a@b.de"}, true},
		{"unrelated args only", map[string]any{"name": "Ada"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ev.Check("capture_lead", pad, tt.args)
			if d.Allowed != tt.allow {
				t.Errorf("got %+v, want allowed=%v", d, tt.allow)
			}
		})
	}
}

func TestCheck_PathNonEmpty(t *testing.T) {
	ev := NewEvaluator()
	ev.Declare("get_listing", Gate{
		Name:   "search_ran",
		Pred:   PathNonEmpty("search.id"),
		Reason: "No search results yet.",
	})

	pad := notepad.New()
	if d := ev.Check("get_listing", pad, nil); d.Allowed {
		t.Error("expected deny before any search")
	}
	pad.Apply(&notepad.Update{Search: &notepad.SearchHandle{ID: "s-1"}})
	if d := ev.Check("get_listing", pad, nil); !d.Allowed {
		t.Errorf("expected allow after search, got %+v", d)
	}
}
