package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
	"github.com/sandevgo/roostbot/internal/session"
	"github.com/sandevgo/roostbot/internal/tools"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDB(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedListing(t *testing.T, db *sql.DB, l core.Listing) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO listings (id, title, address, city, lat, lon, price, bedrooms, area_sqm, property_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Address, l.City, l.Lat, l.Lon, l.Price, l.Bedrooms, l.AreaSqm, l.PropertyType,
	)
	if err != nil {
		t.Fatalf("failed to seed listing: %v", err)
	}
}

func TestSessionsRepo_RoundTrip(t *testing.T) {
	repo := NewSessionsRepo(testDB(t))
	ctx := context.Background()

	// Load before any save is an absence, not an error.
	snap, err := repo.Load(ctx, "chat-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot for unknown chat")
	}

	pad := notepad.New()
	pad.Apply(&notepad.Update{
		Location: &notepad.LocationState{City: "Riverton", Validated: true},
		Facts:    map[string]string{"budget": "400000"},
	})
	now := time.Now().UTC().Truncate(time.Second)
	in := &session.Snapshot{
		SessionID: "s-1",
		ChatID:    "chat-1",
		Notepad:   pad,
		Messages: []core.Message{
			{Role: core.RoleUser, Content: "hi", Timestamp: now},
			{Role: core.RoleAssistant, Content: "hello", Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	out, err := repo.Load(ctx, "chat-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out.SessionID != "s-1" || len(out.Messages) != 2 {
		t.Errorf("snapshot did not round-trip: %+v", out)
	}
	if !out.Notepad.Location.Validated || out.Notepad.UserFacts["budget"] != "400000" {
		t.Errorf("notepad did not round-trip: %+v", out.Notepad)
	}

	// A second save for the same chat overwrites.
	in.SessionID = "s-2"
	in.Messages = append(in.Messages, core.Message{Role: core.RoleUser, Content: "more", Timestamp: now})
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	out, err = repo.Load(ctx, "chat-1")
	if err != nil {
		t.Fatal(err)
	}
	if out.SessionID != "s-2" || len(out.Messages) != 3 {
		t.Errorf("upsert did not replace: %+v", out)
	}
}

func TestListingsRepo_FindAreas(t *testing.T) {
	db := testDB(t)
	repo := NewListingsRepo(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO areas (name, city, lat, lon, radius_km) VALUES
		('Northside', 'Riverton', 52.10, 4.90, 4.0),
		('North Park', 'Riverton', 52.12, 4.95, 3.0),
		('Harbour', 'Riverton', 52.05, 4.80, 5.0)`)
	if err != nil {
		t.Fatal(err)
	}

	areas, err := repo.FindAreas(ctx, "north")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(areas) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(areas))
	}
	if areas[0].Name != "North Park" {
		t.Errorf("results not ordered by name: %+v", areas)
	}

	areas, err = repo.FindAreas(ctx, "nowhere")
	if err != nil {
		t.Fatal(err)
	}
	if len(areas) != 0 {
		t.Errorf("expected no matches, got %+v", areas)
	}
}

func TestListingsRepo_SearchRadiusAndFilters(t *testing.T) {
	db := testDB(t)
	repo := NewListingsRepo(db)
	ctx := context.Background()

	center := core.Listing{Lat: 52.10, Lon: 4.90}
	seedListing(t, db, core.Listing{ID: "near", Title: "Near flat", Lat: 52.101, Lon: 4.901, Price: 300000, Bedrooms: 2, AreaSqm: 70, PropertyType: "flat"})
	seedListing(t, db, core.Listing{ID: "edge", Title: "Edge flat", Lat: 52.12, Lon: 4.90, Price: 280000, Bedrooms: 2, AreaSqm: 65, PropertyType: "flat"})
	// Inside the bounding-box corner but ~5.9 km out, past the radius.
	seedListing(t, db, core.Listing{ID: "far", Title: "Far flat", Lat: 52.135, Lon: 4.965, Price: 250000, Bedrooms: 2, AreaSqm: 60, PropertyType: "flat"})
	seedListing(t, db, core.Listing{ID: "pricey", Title: "Pricey flat", Lat: 52.102, Lon: 4.902, Price: 900000, Bedrooms: 3, AreaSqm: 120, PropertyType: "flat"})
	seedListing(t, db, core.Listing{ID: "house", Title: "House", Lat: 52.103, Lon: 4.903, Price: 320000, Bedrooms: 4, AreaSqm: 140, PropertyType: "house"})

	got, total, err := repo.Search(ctx, tools.ListingQuery{
		Lat: center.Lat, Lon: center.Lon, RadiusKM: 5,
		MaxPrice: 500000, PropertyType: "flat", Limit: 5,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 in-radius matches, got %d", total)
	}
	for _, l := range got {
		if l.ID == "far" {
			t.Error("haversine filter let a bounding-box corner through")
		}
		if l.ID == "pricey" || l.ID == "house" {
			t.Errorf("SQL filter let %s through", l.ID)
		}
	}
	if len(got) > 0 && got[0].ID != "near" {
		t.Errorf("results not ordered by distance: %+v", got)
	}

	// Limit truncates the page but not the total.
	got, total, err = repo.Search(ctx, tools.ListingQuery{
		Lat: center.Lat, Lon: center.Lon, RadiusKM: 5, Limit: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || total != 4 {
		t.Errorf("limit/total wrong: page %d, total %d", len(got), total)
	}
}

func TestListingsRepo_Get(t *testing.T) {
	db := testDB(t)
	repo := NewListingsRepo(db)
	ctx := context.Background()

	seedListing(t, db, core.Listing{ID: "L-1", Title: "Canal flat", Lat: 52.1, Lon: 4.9, Price: 300000, PropertyType: "flat"})

	l, err := repo.Get(ctx, "L-1")
	if err != nil {
		t.Fatal(err)
	}
	if l == nil || l.Title != "Canal flat" {
		t.Errorf("wrong listing: %+v", l)
	}

	l, err = repo.Get(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if l != nil {
		t.Errorf("expected nil for missing listing, got %+v", l)
	}
}

func TestSearchesRepo_SavePage(t *testing.T) {
	db := testDB(t)
	repo := NewSearchesRepo(db)
	ctx := context.Background()

	if err := repo.SavePage(ctx, "s-1", []string{"L-3", "L-1", "L-2"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	rows, err := db.Query(`SELECT position, listing_id FROM search_results WHERE search_id = ? ORDER BY position`, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var pos int
		var id string
		if err := rows.Scan(&pos, &id); err != nil {
			t.Fatal(err)
		}
		got = append(got, id)
	}
	if len(got) != 3 || got[0] != "L-3" || got[2] != "L-2" {
		t.Errorf("page order lost: %v", got)
	}
}

func TestSearchesRepo_LoadPage(t *testing.T) {
	db := testDB(t)
	repo := NewSearchesRepo(db)
	ctx := context.Background()

	if err := repo.SavePage(ctx, "s-1", []string{"L-3", "L-1", "L-2"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.SavePage(ctx, "s-2", []string{"M-9"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// A second repo over the same database stands in for a process restart.
	ids, err := NewSearchesRepo(db).LoadPage(ctx, "s-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != "L-3" || ids[1] != "L-1" || ids[2] != "L-2" {
		t.Errorf("page came back out of order: %v", ids)
	}

	ids, err = repo.LoadPage(ctx, "s-missing")
	if err != nil {
		t.Fatalf("unknown search id must not error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("unknown search id returned a page: %v", ids)
	}
}

func TestLeadsRepo_Insert(t *testing.T) {
	db := testDB(t)
	repo := NewLeadsRepo(db)
	ctx := context.Background()

	id, err := repo.Insert(ctx, core.Lead{Name: "Dana Vries", Phone: "+31612345678", Note: "2br near the canal"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if id == 0 {
		t.Error("expected a non-zero lead id")
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM leads WHERE id = ?`, id).Scan(&name); err != nil {
		t.Fatal(err)
	}
	if name != "Dana Vries" {
		t.Errorf("wrong lead name: %q", name)
	}
}
