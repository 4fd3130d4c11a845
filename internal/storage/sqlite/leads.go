package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/tools"
)

type LeadsRepo struct {
	db *sql.DB
}

func NewLeadsRepo(db *sql.DB) *LeadsRepo {
	return &LeadsRepo{db: db}
}

func (r *LeadsRepo) Insert(ctx context.Context, lead core.Lead) (int64, error) {
	query := `INSERT INTO leads (name, phone, email, note, listing_id) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, lead.Name, lead.Phone, lead.Email, lead.Note, lead.ListingID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert lead: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read lead id: %w", err)
	}
	return id, nil
}

var _ tools.LeadWriter = (*LeadsRepo)(nil)
