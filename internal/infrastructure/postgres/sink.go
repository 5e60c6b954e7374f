// Package postgres stores a copy of every enrichment run in a Postgres table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/catalogfill/enricher/internal/domain"
	"github.com/catalogfill/enricher/internal/logging"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Sink implements domain.ResultSink
type Sink struct {
	pool      *pgxpool.Pool
	table     string
	batchSize int
	logger    *zap.Logger
}

// Open connects a pool for dsn
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse dsn")
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return pool, nil
}

// NewSink creates a sink writing into table (optionally schema-qualified)
func NewSink(pool *pgxpool.Pool, table string, batchSize int, logger *zap.Logger) (*Sink, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidRequest, table)
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Sink{
		pool:      pool,
		table:     table,
		batchSize: batchSize,
		logger:    logging.OrNop(logger).Named("postgres"),
	}, nil
}

// EnsureTable creates the results table when missing
func (s *Sink) EnsureTable(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL(s.table)); err != nil {
		return eris.Wrapf(err, "postgres: create table %s", s.table)
	}
	return nil
}

// Save inserts one row per record. Rows already stored for the same run are left untouched.
func (s *Sink) Save(ctx context.Context, report *domain.RunReport, records []*domain.Record) error {
	if err := s.EnsureTable(ctx); err != nil {
		return err
	}

	rows, err := BuildRows(report, records)
	if err != nil {
		return err
	}

	insert := insertSQL(s.table)
	total := 0
	for i := 0; i < len(rows); i += s.batchSize {
		j := i + s.batchSize
		if j > len(rows) {
			j = len(rows)
		}

		b := &pgx.Batch{}
		for _, r := range rows[i:j] {
			b.Queue(insert, r.RunID, r.RowIndex, r.Status, r.ProductName, r.CategoryID, r.CategoryPath, r.Record)
		}

		br := s.pool.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return eris.Wrapf(err, "postgres: insert row %d", k)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return eris.Wrap(err, "postgres: close batch")
		}
	}

	s.logger.Info("results stored",
		zap.String("run_id", report.RunID),
		zap.String("table", s.table),
		zap.Int("rows", total))
	return nil
}

// Row is one results-table row
type Row struct {
	RunID        string
	RowIndex     int
	Status       string
	ProductName  *string
	CategoryID   *string
	CategoryPath *string
	Record       []byte
}

// BuildRows pairs each record with its outcome
func BuildRows(report *domain.RunReport, records []*domain.Record) ([]Row, error) {
	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		status := ""
		if i < len(report.Outcomes) {
			status = string(report.Outcomes[i].Status)
		}

		doc, err := json.Marshal(rec)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: encode row %d", i)
		}

		rows = append(rows, Row{
			RunID:        report.RunID,
			RowIndex:     i,
			Status:       status,
			ProductName:  rec.Raw(domain.FieldProductName),
			CategoryID:   rec.Raw(domain.FieldCategoryID),
			CategoryPath: rec.Raw(domain.FieldCategoryPath),
			Record:       doc,
		})
	}
	return rows, nil
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
	run_id        UUID        NOT NULL,
	row_index     INTEGER     NOT NULL,
	status        TEXT        NOT NULL,
	product_name  TEXT,
	category_id   TEXT,
	category_path TEXT,
	record        JSONB       NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, row_index)
)`
}

func insertSQL(table string) string {
	return `INSERT INTO ` + table + `
	(run_id, row_index, status, product_name, category_id, category_path, record)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (run_id, row_index) DO NOTHING`
}
