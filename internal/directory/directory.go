// Package directory exposes the business-profile collaborator. The identity
// platform owns these records; this service only reads the fields it needs
// to gate selling and bidding, plus an upsert used when a business completes
// its profile.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"surplusbid/internal/domain"
)

type Directory interface {
	Lookup(ctx context.Context, userID string) (*domain.Profile, error)
	Save(ctx context.Context, p *domain.Profile) error
}

type pgDirectory struct {
	db *sql.DB
}

func New(db *sql.DB) Directory { return &pgDirectory{db: db} }

func (d *pgDirectory) Lookup(ctx context.Context, userID string) (*domain.Profile, error) {
	const q = `SELECT user_id, display_name, company_name, email, profile_complete
	             FROM business_profiles WHERE user_id = $1`

	p := &domain.Profile{}
	err := d.db.QueryRowContext(ctx, q, userID).
		Scan(&p.UserID, &p.DisplayName, &p.CompanyName, &p.Email, &p.ProfileComplete)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrUserNotFound)
		}
		return nil, fmt.Errorf("lookup profile %s: %w", userID, err)
	}
	return p, nil
}

func (d *pgDirectory) Save(ctx context.Context, p *domain.Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	const q = `
	  INSERT INTO business_profiles (user_id, display_name, company_name, email, profile_complete)
	       VALUES ($1, $2, $3, $4, $5)
	  ON CONFLICT (user_id) DO UPDATE
	        SET display_name     = EXCLUDED.display_name,
	            company_name     = EXCLUDED.company_name,
	            email            = EXCLUDED.email,
	            profile_complete = EXCLUDED.profile_complete`

	if _, err := d.db.ExecContext(ctx, q,
		p.UserID, p.DisplayName, p.CompanyName, p.Email, p.ProfileComplete); err != nil {
		return fmt.Errorf("save profile %s: %w", p.UserID, err)
	}
	return nil
}
