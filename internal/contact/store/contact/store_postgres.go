package contact

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"contactdir/internal/contact/models"
	"contactdir/pkg/platform/sentinel"
	"contactdir/pkg/platform/tx"
)

// Postgres implements the contact store over the contacts table. Every
// statement is scoped by owner_id; the conditional update on lock_version
// makes find-and-modify a single atomic write.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a postgres-backed contact store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const contactColumns = `
	id, owner_id, external_id, unified_id, source_id,
	first_name, last_name, company_name, title, department, level,
	emails, phone_numbers, addresses, tags, tier,
	unified_timestamp, lock_version, created_on, updated_on`

func (s *Postgres) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	emails, phones, addresses, err := marshalGraphs(c)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO contacts (
			owner_id, external_id, unified_id, source_id,
			first_name, last_name, company_name, title, department, level,
			emails, phone_numbers, addresses, tags, tier,
			unified_timestamp, lock_version, created_on, updated_on
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,0,$17,$17)
		RETURNING id
	`
	created := c.Clone()
	err = s.db.QueryRowContext(ctx, query,
		c.OwnerID, c.ExternalID, c.UnifiedID, c.SourceID,
		c.Name.First, c.Name.Last, c.CompanyName,
		c.TitleInfo.Title, c.TitleInfo.Department, c.TitleInfo.Level,
		emails, phones, addresses, pq.Array(c.Tags), c.Tier,
		c.UnifiedTimestamp, c.CreatedOn,
	).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	created.LockVersion = 0
	return created, nil
}

func (s *Postgres) FetchByID(ctx context.Context, id int64, ownerID string) (*models.Contact, error) {
	query := `SELECT` + contactColumns + ` FROM contacts WHERE id = $1 AND owner_id = $2`
	c, err := scanContact(s.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("fetch contact: %w", err)
	}
	return c, nil
}

func (s *Postgres) Update(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	emails, phones, addresses, err := marshalGraphs(c)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE contacts SET
			external_id = $4, unified_id = $5, source_id = $6,
			first_name = $7, last_name = $8, company_name = $9,
			title = $10, department = $11, level = $12,
			emails = $13, phone_numbers = $14, addresses = $15,
			tags = $16, tier = $17, unified_timestamp = $18,
			lock_version = lock_version + 1, updated_on = $19
		WHERE id = $1 AND owner_id = $2 AND lock_version = $3
		RETURNING` + contactColumns
	updated, err := scanContact(s.db.QueryRowContext(ctx, query,
		c.ID, c.OwnerID, c.LockVersion,
		c.ExternalID, c.UnifiedID, c.SourceID,
		c.Name.First, c.Name.Last, c.CompanyName,
		c.TitleInfo.Title, c.TitleInfo.Department, c.TitleInfo.Level,
		emails, phones, addresses, pq.Array(c.Tags), c.Tier,
		c.UnifiedTimestamp, c.UpdatedOn,
	))
	if err == nil {
		return updated, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("update contact: %w", err)
	}

	// Zero rows: distinguish a missing record from a lost lock_version race.
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contacts WHERE id = $1 AND owner_id = $2)`,
		c.ID, c.OwnerID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrVersionConflict
}

func (s *Postgres) Delete(ctx context.Context, id int64, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// BulkSave inserts the batch in one transaction so the caller observes all
// rows persisted or none.
func (s *Postgres) BulkSave(ctx context.Context, ownerID string, contacts []*models.Contact) ([]int64, error) {
	query := `
		INSERT INTO contacts (
			owner_id, external_id, unified_id, source_id,
			first_name, last_name, company_name, title, department, level,
			emails, phone_numbers, addresses, tags, tier,
			unified_timestamp, lock_version, created_on, updated_on
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,0,$17,$17)
		RETURNING id
	`
	ids := make([]int64, 0, len(contacts))
	err := tx.Run(ctx, s.db, func(tx *sql.Tx) error {
		for _, c := range contacts {
			emails, phones, addresses, err := marshalGraphs(c)
			if err != nil {
				return err
			}
			var id int64
			err = tx.QueryRowContext(ctx, query,
				ownerID, c.ExternalID, c.UnifiedID, c.SourceID,
				c.Name.First, c.Name.Last, c.CompanyName,
				c.TitleInfo.Title, c.TitleInfo.Department, c.TitleInfo.Level,
				emails, phones, addresses, pq.Array(c.Tags), c.Tier,
				c.UnifiedTimestamp, c.CreatedOn,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("bulk insert contact: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Postgres) DeleteByIDs(ctx context.Context, ownerID string, ids []int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE owner_id = $1 AND id = ANY($2)`,
		ownerID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk delete contacts: %w", err)
	}
	return res.RowsAffected()
}

func (s *Postgres) FetchByQuery(ctx context.Context, ownerID string, q models.Query) ([]*models.Contact, int, error) {
	where, args := buildWhere(ownerID, q)

	var total int
	countQuery := `SELECT COUNT(*) FROM contacts WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	query := `SELECT` + contactColumns + ` FROM contacts WHERE ` + where + orderClause(q)
	if q.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", q.PageSize, (q.Page-1)*q.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, total, nil
}

func (s *Postgres) CountByQuery(ctx context.Context, ownerID string, q models.Query) (int, error) {
	where, args := buildWhere(ownerID, q)
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return count, nil
}

func buildWhere(ownerID string, q models.Query) (string, []any) {
	clauses := []string{"owner_id = $1"}
	args := []any{ownerID}
	idx := 2

	if len(q.ExternalIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("external_id = ANY($%d)", idx))
		args = append(args, pq.Array(q.ExternalIDs))
		idx++
	}
	if len(q.IDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("id = ANY($%d)", idx))
		args = append(args, pq.Array(q.IDs))
		idx++
	}
	if q.FirstName != "" {
		clauses = append(clauses, fmt.Sprintf("lower(first_name) = lower($%d)", idx))
		args = append(args, q.FirstName)
		idx++
	}
	if q.LastName != "" {
		clauses = append(clauses, fmt.Sprintf("lower(last_name) = lower($%d)", idx))
		args = append(args, q.LastName)
		idx++
	}
	return strings.Join(clauses, " AND "), args
}

// orderClause appends the id tie-break so pagination stays reproducible.
func orderClause(q models.Query) string {
	col := "id"
	switch q.SortBy {
	case "first_name", "last_name", "created_on", "updated_on":
		col = q.SortBy
	}
	dir := "ASC"
	if q.SortDescending {
		dir = "DESC"
	}
	if col == "id" {
		return fmt.Sprintf(" ORDER BY id %s", dir)
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		c                     models.Contact
		emails, phones, addrs []byte
		tags                  pq.StringArray
	)
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.ExternalID, &c.UnifiedID, &c.SourceID,
		&c.Name.First, &c.Name.Last, &c.CompanyName,
		&c.TitleInfo.Title, &c.TitleInfo.Department, &c.TitleInfo.Level,
		&emails, &phones, &addrs, &tags, &c.Tier,
		&c.UnifiedTimestamp, &c.LockVersion, &c.CreatedOn, &c.UpdatedOn,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalGraphs(&c, emails, phones, addrs); err != nil {
		return nil, err
	}
	c.Tags = tags
	return &c, nil
}

func marshalGraphs(c *models.Contact) (emails, phones, addresses []byte, err error) {
	if emails, err = json.Marshal(c.Emails); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal emails: %w", err)
	}
	if phones, err = json.Marshal(c.PhoneNumbers); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal phone numbers: %w", err)
	}
	if addresses, err = json.Marshal(c.Addresses); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal addresses: %w", err)
	}
	return emails, phones, addresses, nil
}

func unmarshalGraphs(c *models.Contact, emails, phones, addrs []byte) error {
	if len(emails) > 0 {
		if err := json.Unmarshal(emails, &c.Emails); err != nil {
			return fmt.Errorf("unmarshal emails: %w", err)
		}
	}
	if len(phones) > 0 {
		if err := json.Unmarshal(phones, &c.PhoneNumbers); err != nil {
			return fmt.Errorf("unmarshal phone numbers: %w", err)
		}
	}
	if len(addrs) > 0 {
		if err := json.Unmarshal(addrs, &c.Addresses); err != nil {
			return fmt.Errorf("unmarshal addresses: %w", err)
		}
	}
	return nil
}
