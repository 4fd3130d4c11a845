package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/roostbot/internal/service/agent"
	"github.com/sandevgo/roostbot/internal/tools"
)

// SearchesRepo records which listings made up each search result page, in
// page order, so later references by position survive a restart.
type SearchesRepo struct {
	db *sql.DB
}

func NewSearchesRepo(db *sql.DB) *SearchesRepo {
	return &SearchesRepo{db: db}
}

func (r *SearchesRepo) SavePage(ctx context.Context, searchID string, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO search_results (search_id, position, listing_id) VALUES (?, ?, ?)`
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, query, searchID, i+1, id); err != nil {
			return fmt.Errorf("failed to save search result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit search results: %w", err)
	}
	return nil
}

// LoadPage returns the listing ids of one stored page in page order. An
// unknown search id yields an empty page, not an error.
func (r *SearchesRepo) LoadPage(ctx context.Context, searchID string) ([]string, error) {
	query := `SELECT listing_id FROM search_results WHERE search_id = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load search results: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ tools.SearchPager = (*SearchesRepo)(nil)
var _ agent.PageLoader = (*SearchesRepo)(nil)
