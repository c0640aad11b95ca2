package tag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"contactdir/internal/tag/models"
	"contactdir/pkg/platform/sentinel"
	"contactdir/pkg/platform/tx"
)

// Postgres stores tags in the tags table with links in contact_tags.
// contact_count is recomputed from the link rows inside the same
// transaction that mutates them, so the counter cannot drift.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a postgres-backed tag store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const tagColumns = "id, owner_id, name, name_key, contact_count, lock_version, created_on, updated_on"

// CreateUnique inserts the tag or, when the owner already has a tag with
// the same name key, returns the existing row untouched. The no-op DO
// UPDATE makes RETURNING yield the existing row.
func (s *Postgres) CreateUnique(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tags (owner_id, name, name_key, contact_count, created_on, updated_on)
		VALUES ($1, $2, $3, 0, $4, $4)
		ON CONFLICT (owner_id, name_key) DO UPDATE SET name_key = tags.name_key
		RETURNING `+tagColumns,
		tag.OwnerID, tag.Name, tag.NameKey, tag.CreatedOn,
	)
	stored, err := scanTag(row)
	if err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return stored, nil
}

// Create inserts the tag. The unique (owner_id, name_key) constraint turns
// a duplicate name into ErrConflict.
func (s *Postgres) Create(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tags (owner_id, name, name_key, contact_count, created_on, updated_on)
		VALUES ($1, $2, $3, 0, $4, $4)
		RETURNING `+tagColumns,
		tag.OwnerID, tag.Name, tag.NameKey, tag.CreatedOn,
	)
	stored, err := scanTag(row)
	if isUniqueViolation(err) {
		return nil, sentinel.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	return stored, nil
}

func (s *Postgres) FetchByID(ctx context.Context, id int64, ownerID string) (*models.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tagColumns+`
		FROM tags
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	stored, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch tag: %w", err)
	}
	return stored, nil
}

func (s *Postgres) List(ctx context.Context, ownerID string) ([]*models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tagColumns+`
		FROM tags
		WHERE owner_id = $1
		ORDER BY name_key`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return out, nil
}

func (s *Postgres) Rename(ctx context.Context, id int64, ownerID, name, nameKey string, now time.Time) (*models.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tags
		SET name = $3, name_key = $4, lock_version = lock_version + 1, updated_on = $5
		WHERE id = $1 AND owner_id = $2
		RETURNING `+tagColumns,
		id, ownerID, name, nameKey, now,
	)
	stored, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, sentinel.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("rename tag: %w", err)
	}
	return stored, nil
}

func (s *Postgres) Delete(ctx context.Context, id int64, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tags
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tag rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) AssignContacts(ctx context.Context, tagID int64, ownerID string, contactIDs []int64) (int64, error) {
	return s.adjustLinks(ctx, tagID, ownerID, func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO contact_tags (tag_id, contact_id)
			SELECT $1, c.id
			FROM contacts c
			WHERE c.id = ANY($2) AND c.owner_id = $3
			ON CONFLICT (tag_id, contact_id) DO NOTHING`,
			tagID, pq.Array(contactIDs), ownerID,
		)
		if err != nil {
			return 0, fmt.Errorf("link contacts: %w", err)
		}
		return res.RowsAffected()
	})
}

func (s *Postgres) RemoveContacts(ctx context.Context, tagID int64, ownerID string, contactIDs []int64) (int64, error) {
	return s.adjustLinks(ctx, tagID, ownerID, func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM contact_tags
			WHERE tag_id = $1 AND contact_id = ANY($2)`,
			tagID, pq.Array(contactIDs),
		)
		if err != nil {
			return 0, fmt.Errorf("unlink contacts: %w", err)
		}
		return res.RowsAffected()
	})
}

// adjustLinks runs a link mutation inside a transaction and resets
// contact_count from the surviving link rows.
func (s *Postgres) adjustLinks(ctx context.Context, tagID int64, ownerID string, mutate func(*sql.Tx) (int64, error)) (int64, error) {
	var touched int64
	err := tx.Run(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM tags WHERE id = $1 AND owner_id = $2)`,
			tagID, ownerID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check tag: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}

		if touched, err = mutate(tx); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tags
			SET contact_count = (SELECT COUNT(*) FROM contact_tags WHERE tag_id = $1)
			WHERE id = $1`,
			tagID,
		)
		if err != nil {
			return fmt.Errorf("refresh contact count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return touched, nil
}

func (s *Postgres) ContactIDs(ctx context.Context, tagID int64, ownerID string) ([]int64, error) {
	if _, err := s.FetchByID(ctx, tagID, ownerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT contact_id
		FROM contact_tags
		WHERE tag_id = $1
		ORDER BY contact_id`,
		tagID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch linked contacts: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan linked contact: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked contacts: %w", err)
	}
	return out, nil
}

// SyncContact relinks a contact to exactly the owner's tags named by the
// given name keys, refreshing counts for every tag whose links changed.
func (s *Postgres) SyncContact(ctx context.Context, ownerID string, contactID int64, nameKeys []string) error {
	return tx.Run(ctx, s.db, func(tx *sql.Tx) error {
		keys := pq.Array(nameKeys)
		_, err := tx.ExecContext(ctx, `
			DELETE FROM contact_tags ct
			USING tags t
			WHERE ct.tag_id = t.id
			  AND ct.contact_id = $1
			  AND t.owner_id = $2
			  AND NOT (t.name_key = ANY($3))`,
			contactID, ownerID, keys,
		)
		if err != nil {
			return fmt.Errorf("unlink stale tags: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO contact_tags (tag_id, contact_id)
			SELECT t.id, $1
			FROM tags t
			WHERE t.owner_id = $2 AND t.name_key = ANY($3)
			ON CONFLICT (tag_id, contact_id) DO NOTHING`,
			contactID, ownerID, keys,
		)
		if err != nil {
			return fmt.Errorf("link tags: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tags t
			SET contact_count = (SELECT COUNT(*) FROM contact_tags WHERE tag_id = t.id)
			WHERE t.owner_id = $1`,
			ownerID,
		)
		if err != nil {
			return fmt.Errorf("refresh contact counts: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (*models.Tag, error) {
	var t models.Tag
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.NameKey, &t.ContactCount, &t.LockVersion, &t.CreatedOn, &t.UpdatedOn)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
