// Package postgres provides the Postgres-backed program store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// optionalColumns are nullable; an upsert never overwrites them with NULL.
var optionalColumns = []string{
	"category", "title", "organization", "region",
	"application_start", "application_end", "view_count",
	"description", "eligibility", "support_field", "funding_amount",
	"target_age", "target_region", "target_type", "company_age", "institution_type", "target_industry",
	"ai_summary", "target_detail", "exclusion_detail",
}

// ProgramStore implements crawler.Store on a programs table unique on (source, source_id).
type ProgramStore struct {
	pool  pool
	table string
	clock crawler.Clock

	upsertSQL string
	selectSQL string
}

var _ crawler.Store = (*ProgramStore)(nil)

// NewProgramStore connects a pool using cfg.
func NewProgramStore(ctx context.Context, cfg Config) (*ProgramStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewProgramStoreWithPool(p, cfg.Table, nil)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewProgramStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProgramStoreWithPool(p pool, table string, clock crawler.Clock) (*ProgramStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "programs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &ProgramStore{
		pool:      p,
		table:     table,
		clock:     clock,
		upsertSQL: buildUpsertSQL(table),
		selectSQL: buildSelectSQL(table),
	}, nil
}

// Close releases the underlying pool resources.
func (s *ProgramStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity for readiness probes.
func (s *ProgramStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the programs table when missing.
func (s *ProgramStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	source_id TEXT NOT NULL,
	url TEXT NOT NULL,
	category TEXT,
	title TEXT,
	organization TEXT,
	region TEXT,
	application_start TIMESTAMPTZ,
	application_end TIMESTAMPTZ,
	view_count INTEGER,
	description TEXT,
	eligibility TEXT,
	support_field TEXT,
	funding_amount TEXT,
	target_age TEXT,
	target_region TEXT,
	target_type TEXT,
	company_age TEXT,
	institution_type TEXT,
	target_industry TEXT,
	ai_summary TEXT,
	target_detail TEXT,
	exclusion_detail TEXT,
	llm_processed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT %[1]s_source_key UNIQUE (source, source_id)
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Upsert inserts or updates record. Absent optional fields keep their stored values.
func (s *ProgramStore) Upsert(ctx context.Context, record crawler.ProgramRecord) (bool, error) {
	if record.Source == "" || record.SourceID == "" {
		return false, fmt.Errorf("source and source id are required")
	}
	now := s.clock.Now()
	args := make([]any, 0, len(optionalColumns)+6)
	args = append(args, string(record.Source), record.SourceID, record.URL)
	args = append(args, optionalValues(record.Fields)...)
	args = append(args, record.LLMProcessed, now, now)

	var created bool
	if err := s.pool.QueryRow(ctx, s.upsertSQL, args...).Scan(&created); err != nil {
		return false, fmt.Errorf("upsert program %s: %w", record.Key(), err)
	}
	return created, nil
}

// Get loads one record by key.
func (s *ProgramStore) Get(ctx context.Context, key crawler.Key) (crawler.ProgramRecord, error) {
	query := s.selectSQL + " WHERE source = $1 AND source_id = $2"
	record, err := scanRecord(s.pool.QueryRow(ctx, query, string(key.Source), key.SourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.ProgramRecord{}, crawler.ErrNotFound
	}
	if err != nil {
		return crawler.ProgramRecord{}, fmt.Errorf("get program %s: %w", key, err)
	}
	return record, nil
}

// ListForReextract returns unprocessed records (all records when force is set), newest first.
// A non-positive limit returns every match.
func (s *ProgramStore) ListForReextract(ctx context.Context, limit int, force bool) ([]crawler.ProgramRecord, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	query := s.selectSQL + " WHERE ($1 OR NOT llm_processed) ORDER BY created_at DESC LIMIT $2"
	rows, err := s.pool.Query(ctx, query, force, limitArg)
	if err != nil {
		return nil, fmt.Errorf("list programs for re-extraction: %w", err)
	}
	defer rows.Close()

	var out []crawler.ProgramRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return out, nil
}

// UpdateEnrichment rewrites the narrative fields of one record.
func (s *ProgramStore) UpdateEnrichment(ctx context.Context, key crawler.Key, e crawler.Enrichment) error {
	query := fmt.Sprintf(`
UPDATE %s
SET ai_summary = $3, target_detail = $4, exclusion_detail = $5,
	llm_processed = llm_processed OR $6, updated_at = $7
WHERE source = $1 AND source_id = $2`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		string(key.Source), key.SourceID,
		nullString(e.AISummary), nullString(e.TargetDetail), nullString(e.ExclusionDetail),
		e.LLMProcessed, s.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("update enrichment %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.ErrNotFound
	}
	return nil
}

func buildUpsertSQL(table string) string {
	columns := append([]string{"source", "source_id", "url"}, optionalColumns...)
	columns = append(columns, "llm_processed", "created_at", "updated_at")
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := []string{"url = EXCLUDED.url"}
	for _, col := range optionalColumns {
		updates = append(updates, fmt.Sprintf("%[1]s = COALESCE(EXCLUDED.%[1]s, %[2]s.%[1]s)", col, table))
	}
	updates = append(updates,
		fmt.Sprintf("llm_processed = %s.llm_processed OR EXCLUDED.llm_processed", table),
		"updated_at = EXCLUDED.updated_at",
	)
	return fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES (%s)
ON CONFLICT (source, source_id) DO UPDATE SET
	%s
RETURNING (xmax = 0) AS created`,
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ",\n\t"),
	)
}

func buildSelectSQL(table string) string {
	columns := append([]string{"source", "source_id", "url"}, optionalColumns...)
	columns = append(columns, "llm_processed", "created_at", "updated_at")
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)
}

func optionalValues(f crawler.Fields) []any {
	return []any{
		nullString(f.Category), nullString(f.Title), nullString(f.Organization), nullString(f.Region),
		f.ApplicationStart, f.ApplicationEnd, f.ViewCount,
		nullString(f.Description), nullString(f.Eligibility), nullString(f.SupportField), nullString(f.FundingAmount),
		nullString(f.TargetAge), nullString(f.TargetRegion), nullString(f.TargetType), nullString(f.CompanyAge),
		nullString(f.InstitutionType), nullString(f.TargetIndustry),
		nullString(f.AISummary), nullString(f.TargetDetail), nullString(f.ExclusionDetail),
	}
}

func nullString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanRecord(row pgx.Row) (crawler.ProgramRecord, error) {
	var (
		r       crawler.ProgramRecord
		source  string
		strs    [17]*string
		start   *time.Time
		end     *time.Time
		viewCnt *int
	)
	err := row.Scan(
		&source, &r.SourceID, &r.URL,
		&strs[0], &strs[1], &strs[2], &strs[3],
		&start, &end, &viewCnt,
		&strs[4], &strs[5], &strs[6], &strs[7],
		&strs[8], &strs[9], &strs[10], &strs[11], &strs[12], &strs[13],
		&strs[14], &strs[15], &strs[16],
		&r.LLMProcessed, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return crawler.ProgramRecord{}, err
	}
	r.Source = crawler.Source(source)
	r.Category, r.Title, r.Organization, r.Region = deref(strs[0]), deref(strs[1]), deref(strs[2]), deref(strs[3])
	r.ApplicationStart, r.ApplicationEnd, r.ViewCount = start, end, viewCnt
	r.Description, r.Eligibility = deref(strs[4]), deref(strs[5])
	r.SupportField, r.FundingAmount = deref(strs[6]), deref(strs[7])
	r.TargetAge, r.TargetRegion, r.TargetType = deref(strs[8]), deref(strs[9]), deref(strs[10])
	r.CompanyAge, r.InstitutionType, r.TargetIndustry = deref(strs[11]), deref(strs[12]), deref(strs[13])
	r.AISummary, r.TargetDetail, r.ExclusionDetail = deref(strs[14]), deref(strs[15]), deref(strs[16])
	return r, nil
}
