package tools

import "github.com/sandevgo/roostbot/internal/gate"

// DeclareGates registers the workflow-ordering preconditions for every tool
// that has them. The ordering holds even if the model forgets its prompt.
func DeclareGates(ev *gate.Evaluator) {
	ev.Declare("search_listings", gate.Gate{
		Name:   "location_confirmed",
		Pred:   gate.PathTrue("location.validated"),
		Reason: "There is no confirmed search location yet.",
		Hint:   "Call confirm_location with the area the user named before searching.",
	})

	ev.Declare("get_listing", gate.Gate{
		Name:   "search_ran",
		Pred:   gate.PathNonEmpty("search.id"),
		Reason: "There are no search results to pick from.",
		Hint:   "Run search_listings first.",
	})

	ev.Declare("estimate_value",
		gate.Gate{
			Name:   "location_confirmed",
			Pred:   gate.PathTrue("location.validated"),
			Reason: "There is no confirmed location to compare against.",
			Hint:   "Call confirm_location first.",
		},
		gate.Gate{
			Name:   "search_ran",
			Pred:   gate.PathNonEmpty("search.id"),
			Reason: "There are no search results to value.",
			Hint:   "Run search_listings first.",
		},
	)

	ev.Declare("save_favorite", gate.Gate{
		Name:   "search_ran",
		Pred:   gate.PathNonEmpty("search.id"),
		Reason: "There are no search results to save from.",
		Hint:   "Run search_listings first.",
	})

	ev.Declare("capture_lead", gate.Gate{
		Name:   "contact_present",
		Pred:   gate.ArgsAnyPresent("phone", "email"),
		Reason: "No contact information was provided.",
		Hint:   "Ask the user for a phone number or email address first.",
	})
}
