package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/tools"
)

const earthRadiusKM = 6371.0

// ListingsRepo reads areas and property listings. Geo queries prefilter with
// a bounding box on the indexed lat/lon columns and rank by haversine
// distance in Go.
type ListingsRepo struct {
	db *sql.DB
}

func NewListingsRepo(db *sql.DB) *ListingsRepo {
	return &ListingsRepo{db: db}
}

func (r *ListingsRepo) FindAreas(ctx context.Context, name string) ([]core.Area, error) {
	query := `SELECT id, name, city, lat, lon, radius_km FROM areas
		WHERE name LIKE ? COLLATE NOCASE ORDER BY name LIMIT 10`
	rows, err := r.db.QueryContext(ctx, query, "%"+strings.TrimSpace(name)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query areas: %w", err)
	}
	defer rows.Close()

	var areas []core.Area
	for rows.Next() {
		var a core.Area
		if err := rows.Scan(&a.ID, &a.Name, &a.City, &a.Lat, &a.Lon, &a.RadiusKM); err != nil {
			return nil, fmt.Errorf("failed to scan area: %w", err)
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

func (r *ListingsRepo) Search(ctx context.Context, q tools.ListingQuery) ([]core.Listing, int, error) {
	conds := []string{"lat BETWEEN ? AND ?", "lon BETWEEN ? AND ?"}
	latDelta, lonDelta := boundingBox(q.Lat, q.RadiusKM)
	args := []any{q.Lat - latDelta, q.Lat + latDelta, q.Lon - lonDelta, q.Lon + lonDelta}

	if q.MaxPrice > 0 {
		conds = append(conds, "price <= ?")
		args = append(args, q.MaxPrice)
	}
	if q.MinBedrooms > 0 {
		conds = append(conds, "bedrooms >= ?")
		args = append(args, q.MinBedrooms)
	}
	if q.PropertyType != "" {
		conds = append(conds, "property_type = ?")
		args = append(args, q.PropertyType)
	}

	query := `SELECT id, title, address, city, lat, lon, price, bedrooms, area_sqm, property_type
		FROM listings WHERE ` + strings.Join(conds, " AND ")
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var within []core.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		if haversineKM(q.Lat, q.Lon, l.Lat, l.Lon) <= q.RadiusKM {
			within = append(within, l)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	sort.Slice(within, func(i, j int) bool {
		di := haversineKM(q.Lat, q.Lon, within[i].Lat, within[i].Lon)
		dj := haversineKM(q.Lat, q.Lon, within[j].Lat, within[j].Lon)
		if di != dj {
			return di < dj
		}
		return within[i].ID < within[j].ID
	})

	total := len(within)
	if q.Limit > 0 && len(within) > q.Limit {
		within = within[:q.Limit]
	}
	return within, total, nil
}

func (r *ListingsRepo) Get(ctx context.Context, id string) (*core.Listing, error) {
	query := `SELECT id, title, address, city, lat, lon, price, bedrooms, area_sqm, property_type
		FROM listings WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	var l core.Listing
	err := row.Scan(&l.ID, &l.Title, &l.Address, &l.City, &l.Lat, &l.Lon,
		&l.Price, &l.Bedrooms, &l.AreaSqm, &l.PropertyType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	return &l, nil
}

func (r *ListingsRepo) Comparables(ctx context.Context, lat, lon, radiusKM float64, propertyType string, limit int) ([]core.Listing, error) {
	latDelta, lonDelta := boundingBox(lat, radiusKM)
	query := `SELECT id, title, address, city, lat, lon, price, bedrooms, area_sqm, property_type
		FROM listings
		WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ? AND property_type = ? AND area_sqm > 0`
	rows, err := r.db.QueryContext(ctx, query,
		lat-latDelta, lat+latDelta, lon-lonDelta, lon+lonDelta, propertyType)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparables: %w", err)
	}
	defer rows.Close()

	var within []core.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		if haversineKM(lat, lon, l.Lat, l.Lon) <= radiusKM {
			within = append(within, l)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(within, func(i, j int) bool {
		return haversineKM(lat, lon, within[i].Lat, within[i].Lon) <
			haversineKM(lat, lon, within[j].Lat, within[j].Lon)
	})
	if limit > 0 && len(within) > limit {
		within = within[:limit]
	}
	return within, nil
}

func scanListing(rows *sql.Rows) (core.Listing, error) {
	var l core.Listing
	err := rows.Scan(&l.ID, &l.Title, &l.Address, &l.City, &l.Lat, &l.Lon,
		&l.Price, &l.Bedrooms, &l.AreaSqm, &l.PropertyType)
	if err != nil {
		return l, fmt.Errorf("failed to scan listing: %w", err)
	}
	return l, nil
}

// boundingBox returns lat/lon half-widths that enclose a circle of the given
// radius. Longitude widens toward the poles.
func boundingBox(lat, radiusKM float64) (latDelta, lonDelta float64) {
	latDelta = radiusKM / 111.0
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	lonDelta = radiusKM / (111.0 * cos)
	return latDelta, lonDelta
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

var (
	_ tools.AreaFinder    = (*ListingsRepo)(nil)
	_ tools.ListingFinder = (*ListingsRepo)(nil)
)
