package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/irfndi/redzone-go/internal/config"
	"github.com/irfndi/redzone-go/internal/models"
)

// MockPoolAdapter wraps pgxmock.PgxPoolIface to implement DatabasePool interface
type MockPoolAdapter struct {
	mock pgxmock.PgxPoolIface
}

func NewMockPoolAdapter(mock pgxmock.PgxPoolIface) DatabasePool {
	return &MockPoolAdapter{mock: mock}
}

func (m *MockPoolAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return m.mock.QueryRow(ctx, sql, args...)
}

func (m *MockPoolAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	result, err := m.mock.Exec(ctx, sql, args...)
	if err == nil {
		rows := result.RowsAffected()
		return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", rows)), nil
	}
	return pgconn.CommandTag{}, err
}

func (m *MockPoolAdapter) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return m.mock.Query(ctx, sql, args...)
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *ReferenceRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewReferenceRepository(NewMockPoolAdapter(mock))
}

func TestReferenceRepository_KnowledgeEntities(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT pattern, category").
		WillReturnRows(pgxmock.NewRows([]string{"pattern", "category", "sub_category", "updated_at"}).
			AddRow("GUSTO", "payroll", "", now).
			AddRow("SSA TREAS", "Benefit", "social security", now))

	entities, err := repo.KnowledgeEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, models.CategoryPayroll, entities[0].Category)
	assert.Equal(t, models.CategoryBenefit, entities[1].Category)
	assert.Equal(t, "social security", entities[1].SubCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepository_KnowledgeEntities_UnknownCategory(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("SELECT pattern, category").
		WillReturnRows(pgxmock.NewRows([]string{"pattern", "category", "sub_category", "updated_at"}).
			AddRow("PIZZA HUT", "food", "", time.Now()))

	_, err := repo.KnowledgeEntities(context.Background())
	assert.ErrorContains(t, err, "unknown category")
}

func TestReferenceRepository_KnowledgeEntities_QueryError(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("SELECT pattern, category").WillReturnError(errors.New("connection reset"))

	_, err := repo.KnowledgeEntities(context.Background())
	assert.ErrorContains(t, err, "failed to query knowledge entities")
}

func TestReferenceRepository_UpsertKnowledgeEntity(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectExec("INSERT INTO knowledge_entities").
		WithArgs("LYFT DRIVER", "gig", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.UpsertKnowledgeEntity(context.Background(), models.KnowledgeEntity{Pattern: "LYFT DRIVER", Category: models.CategoryGig})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, repo.UpsertKnowledgeEntity(context.Background(), models.KnowledgeEntity{Pattern: "  "}))
}

func TestReferenceRepository_Holidays(t *testing.T) {
	mock, repo := newMockRepo(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT holiday_date, name").
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows([]string{"holiday_date", "name"}).
			AddRow(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), "Local Holiday"))

	holidays, err := repo.Holidays(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "Local Holiday", holidays[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepository_LastUpdated(t *testing.T) {
	mock, repo := newMockRepo(t)
	ts := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(ts))

	got, err := repo.LastUpdated(context.Background())
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestTracedPool_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec("INSERT INTO knowledge_entities").
		WithArgs("GUSTO", "payroll", "").
		WillReturnError(errors.New("duplicate"))

	repo := NewReferenceRepository(NewTracedPool(NewMockPoolAdapter(mock)))
	err = repo.UpsertKnowledgeEntity(context.Background(), models.KnowledgeEntity{Pattern: "GUSTO", Category: models.CategoryPayroll})
	assert.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.exec", spans[0].Name())
	assert.Len(t, spans[0].Events(), 1)
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "redzone", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=redzone sslmode=disable", DSN(cfg))

	cfg.DatabaseURL = "postgres://u:p@db/redzone"
	assert.Equal(t, "postgres://u:p@db/redzone", DSN(cfg))

	cfg.MaxOpenConns = 7
	cfg.ConnMaxLifetime = "2m"
	poolCfg, err := PoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(7), poolCfg.MaxConns)
	assert.Equal(t, 2*time.Minute, poolCfg.MaxConnLifetime)
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "SELECT", statementVerb("\n\t\tselect 1"))
	assert.Equal(t, "", statementVerb("   "))
}
