package engine

import (
	"context"
	"database/sql"
	"fmt"
)

// Persona is an autonomous posting identity. All behavior (schedule, rates,
// voice) derives from the ID; the row only carries display metadata.
type Persona struct {
	ID          string
	DisplayName string
}

// PersonaSource lists the identities a trigger runs on behalf of.
type PersonaSource interface {
	Active(ctx context.Context) ([]Persona, error)
}

// PersonaStore reads personas from the content_authors table.
type PersonaStore struct {
	db *sql.DB
}

func NewPersonaStore(db *sql.DB) *PersonaStore {
	return &PersonaStore{db: db}
}

func (s *PersonaStore) Active(ctx context.Context) ([]Persona, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name
		FROM content_authors
		WHERE is_active = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active personas: %w", err)
	}
	defer rows.Close()

	var out []Persona
	for rows.Next() {
		var p Persona
		if err := rows.Scan(&p.ID, &p.DisplayName); err != nil {
			return nil, fmt.Errorf("scan persona row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StaticPersonas is a fixed in-memory PersonaSource, used in tests and for
// bootstrap before the authors table is seeded.
type StaticPersonas []Persona

func (s StaticPersonas) Active(context.Context) ([]Persona, error) {
	return s, nil
}
