package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/irfndi/redzone-go/internal/models"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// ReferenceRepository reads the knowledge-base entities and the holiday
// table that back the labeling and lending stages.
type ReferenceRepository struct {
	pool DatabasePool
}

// NewReferenceRepository creates a new reference repository.
//
// Parameters:
//
//	pool: The database connection pool.
//
// Returns:
//
//	*ReferenceRepository: The initialized repository.
func NewReferenceRepository(pool DatabasePool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

// KnowledgeEntities returns every active entity, ordered by pattern.
//
// Parameters:
//
//	ctx: Context.
//
// Returns:
//
//	[]models.KnowledgeEntity: The entities.
//	error: Error if the query fails or a category is unknown.
func (r *ReferenceRepository) KnowledgeEntities(ctx context.Context) ([]models.KnowledgeEntity, error) {
	query := `
		SELECT pattern, category, COALESCE(sub_category, ''), updated_at
		FROM knowledge_entities
		WHERE is_active = true
		ORDER BY pattern
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge entities: %w", err)
	}
	defer rows.Close()

	var entities []models.KnowledgeEntity
	for rows.Next() {
		var (
			e        models.KnowledgeEntity
			category string
		)
		if err := rows.Scan(&e.Pattern, &category, &e.SubCategory, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entity: %w", err)
		}
		cat, ok := models.ParseCategory(category)
		if !ok {
			return nil, fmt.Errorf("knowledge entity %q has unknown category %q", e.Pattern, category)
		}
		e.Category = cat
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge entities: %w", err)
	}
	return entities, nil
}

// UpsertKnowledgeEntity records a confirmed payer pattern.
func (r *ReferenceRepository) UpsertKnowledgeEntity(ctx context.Context, e models.KnowledgeEntity) error {
	if strings.TrimSpace(e.Pattern) == "" {
		return fmt.Errorf("knowledge entity pattern is required")
	}
	query := `
		INSERT INTO knowledge_entities (pattern, category, sub_category, is_active)
		VALUES ($1, $2, NULLIF($3, ''), true)
		ON CONFLICT (pattern)
		DO UPDATE SET
			category = EXCLUDED.category,
			sub_category = EXCLUDED.sub_category,
			is_active = true,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.pool.Exec(ctx, query, e.Pattern, string(e.Category), e.SubCategory); err != nil {
		return fmt.Errorf("failed to upsert knowledge entity: %w", err)
	}
	return nil
}

// Holidays returns the holidays dated within [from, to].
func (r *ReferenceRepository) Holidays(ctx context.Context, from, to time.Time) ([]models.Holiday, error) {
	query := `
		SELECT holiday_date, name
		FROM bank_holidays
		WHERE holiday_date BETWEEN $1 AND $2
		ORDER BY holiday_date
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []models.Holiday
	for rows.Next() {
		var h models.Holiday
		if err := rows.Scan(&h.Date, &h.Name); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holidays: %w", err)
	}
	return holidays, nil
}

// LastUpdated returns the newest entity modification time; an empty table
// reports the Unix epoch.
func (r *ReferenceRepository) LastUpdated(ctx context.Context) (time.Time, error) {
	var ts time.Time
	query := `SELECT COALESCE(MAX(updated_at), 'epoch'::timestamptz) FROM knowledge_entities WHERE is_active = true`
	if err := r.pool.QueryRow(ctx, query).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to read knowledge entity timestamp: %w", err)
	}
	return ts, nil
}
