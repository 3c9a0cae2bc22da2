package repository

import (
	"context"
	"errors"
	"fmt"

	"casebrief-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseRepository handles database operations for case documents
type CaseRepository struct {
	db *pgxpool.Pool
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: db}
}

const caseColumns = `id, title, decision_date, citation, jurisdiction, content,
			brief_summary, detailed_summary, created_at, updated_at`

func scanCase(row pgx.Row) (*models.CaseRecord, error) {
	c := &models.CaseRecord{}
	var brief, detailed []byte
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.DecisionDate,
		&c.Citation,
		&c.Jurisdiction,
		&c.Content,
		&brief,
		&detailed,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.BriefSummary, err = decodeSummary(brief); err != nil {
		return nil, err
	}
	if c.DetailedSummary, err = decodeSummary(detailed); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeSummary(raw []byte) (*models.BriefSummary, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	s := &models.BriefSummary{}
	if err := s.Scan(raw); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return s, nil
}

// CreateCase inserts a new case without summaries
func (r *CaseRepository) CreateCase(ctx context.Context, fields models.CaseFields) (*models.CaseRecord, error) {
	query := `
		INSERT INTO cases (title, decision_date, citation, jurisdiction, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + caseColumns

	c, err := scanCase(r.db.QueryRow(
		ctx, query,
		fields.Title,
		fields.DecisionDate,
		fields.Citation,
		fields.Jurisdiction,
		fields.Content,
	))
	if err != nil {
		return nil, unavailable("create case", err)
	}
	return c, nil
}

// GetCase retrieves a case by ID
func (r *CaseRepository) GetCase(ctx context.Context, id uuid.UUID) (*models.CaseRecord, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	c, err := scanCase(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("case", id)
	}
	if err != nil {
		return nil, unavailable("get case", err)
	}
	return c, nil
}

// ListCases returns cases, newest first
func (r *CaseRepository) ListCases(ctx context.Context, limit, offset int) ([]*models.CaseRecord, error) {
	query := `SELECT ` + caseColumns + ` FROM cases ORDER BY created_at DESC`

	var args []interface{}
	if limit > 0 {
		query += " LIMIT $1 OFFSET $2"
		args = append(args, limit, offset)
	}
	return r.queryCases(ctx, "list cases", query, args...)
}

// ListUnverified returns cases whose slot holds an unverified summary, oldest update first
func (r *CaseRepository) ListUnverified(ctx context.Context, slot models.Slot, limit int) ([]*models.CaseRecord, error) {
	col := slot.Column()
	query := fmt.Sprintf(`
		SELECT %s FROM cases
		WHERE %s IS NOT NULL AND (%s->>'verified')::boolean IS NOT TRUE
		ORDER BY updated_at ASC
		LIMIT $1`, caseColumns, col, col)

	return r.queryCases(ctx, "list unverified", query, limit)
}

func (r *CaseRepository) queryCases(ctx context.Context, op, query string, args ...interface{}) ([]*models.CaseRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var cases []*models.CaseRecord
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return cases, nil
}

// PatchSummary replaces one slot column. The sibling slot and metadata are untouched.
func (r *CaseRepository) PatchSummary(ctx context.Context, id uuid.UUID, slot models.Slot, summary models.BriefSummary) (models.BriefSummary, error) {
	stored := prepareSummary(summary)
	query := fmt.Sprintf(`
		UPDATE cases SET
			%s = $2,
			updated_at = NOW()
		WHERE id = $1`, slot.Column())

	tag, err := r.db.Exec(ctx, query, id, stored)
	if err != nil {
		return models.BriefSummary{}, unavailable("patch summary", err)
	}
	if tag.RowsAffected() == 0 {
		return models.BriefSummary{}, notFound("case", id)
	}
	return stored, nil
}

// PatchVerified sets only <slot>.verified, guarded by the stored revision
func (r *CaseRepository) PatchVerified(ctx context.Context, id uuid.UUID, slot models.Slot, revision string, verified bool) error {
	col := slot.Column()
	query := fmt.Sprintf(`
		UPDATE cases SET
			%s = jsonb_set(%s, '{verified}', to_jsonb($3::boolean)),
			updated_at = NOW()
		WHERE id = $1 AND %s IS NOT NULL AND %s->>'revision' = $2`, col, col, col, col)

	tag, err := r.db.Exec(ctx, query, id, revision, verified)
	if err != nil {
		return unavailable("patch verified", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current *string
	err = r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s->>'revision' FROM cases WHERE id = $1`, col), id,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("case", id)
	}
	if err != nil {
		return unavailable("patch verified", err)
	}
	if current == nil {
		return notFound(slot.Field()+" of case", id)
	}
	return fmt.Errorf("%s of case %s: %w", slot.Field(), id, ErrStaleRevision)
}

// PatchMetadataField updates one metadata column
func (r *CaseRepository) PatchMetadataField(ctx context.Context, id uuid.UUID, field models.MetadataField, value string) error {
	if !field.Valid() {
		return fmt.Errorf("unknown metadata field %q", field)
	}
	query := fmt.Sprintf(`
		UPDATE cases SET
			%s = $2,
			updated_at = NOW()
		WHERE id = $1`, field.Column())

	tag, err := r.db.Exec(ctx, query, id, value)
	if err != nil {
		return unavailable("patch metadata", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("case", id)
	}
	return nil
}
