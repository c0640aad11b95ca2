package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	contactmodels "contactdir/internal/contact/models"
	"contactdir/internal/searchcache/models"
	"contactdir/pkg/platform/sentinel"
	"contactdir/pkg/platform/tx"
)

// Postgres stores search snapshots in contact_searches with the captured
// contacts denormalized as JSONB rows in cached_contacts. Row position
// preserves capture order; sorting happens at read time.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a postgres-backed snapshot store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, search *models.ContactSearch, contacts []*contactmodels.Contact) (int64, error) {
	var id int64
	err := tx.Run(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO contact_searches (owner_id, query_params, created_on)
			VALUES ($1, $2, $3)
			RETURNING id`,
			search.OwnerID, search.QueryParams, search.CreatedOn,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert search: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cached_contacts (search_id, position, contact)
			VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("prepare cached contact insert: %w", err)
		}
		defer stmt.Close()

		for i, c := range contacts {
			snapshot, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("marshal cached contact: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, id, i, snapshot); err != nil {
				return fmt.Errorf("insert cached contact: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Postgres) Fetch(ctx context.Context, id int64, ownerID string) (*models.ContactSearch, error) {
	var search models.ContactSearch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, query_params, created_on
		FROM contact_searches
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&search.ID, &search.OwnerID, &search.QueryParams, &search.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch search: %w", err)
	}
	return &search, nil
}

func (s *Postgres) Contacts(ctx context.Context, searchID int64, ownerID string) ([]*contactmodels.Contact, error) {
	if _, err := s.Fetch(ctx, searchID, ownerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT contact
		FROM cached_contacts
		WHERE search_id = $1
		ORDER BY position`,
		searchID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch cached contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*contactmodels.Contact
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan cached contact: %w", err)
		}
		var c contactmodels.Contact
		if err := json.Unmarshal(snapshot, &c); err != nil {
			return nil, fmt.Errorf("unmarshal cached contact: %w", err)
		}
		contacts = append(contacts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached contacts: %w", err)
	}
	return contacts, nil
}

func (s *Postgres) Count(ctx context.Context, searchID int64, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM cached_contacts cc
		JOIN contact_searches cs ON cs.id = cc.search_id
		WHERE cs.id = $1 AND cs.owner_id = $2`,
		searchID, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count cached contacts: %w", err)
	}
	if count == 0 {
		if _, err := s.Fetch(ctx, searchID, ownerID); err != nil {
			return 0, err
		}
	}
	return count, nil
}

func (s *Postgres) Delete(ctx context.Context, id int64, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM contact_searches
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete search: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete search rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
