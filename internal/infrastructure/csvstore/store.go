// Package csvstore loads product records from a directory of CSV files and
// writes the enriched result back out as a single CSV.
package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/catalogfill/enricher/internal/domain"
	"github.com/catalogfill/enricher/internal/logging"
)

const utf8BOM = "\ufeff"

// Store implements domain.RecordStore over the local filesystem
type Store struct {
	inputDir   string
	outputPath string
	idColumn   string
	logger     *zap.Logger
}

// NewStore creates a store reading *.csv from inputDir and writing outputPath
func NewStore(inputDir, outputPath, idColumn string, logger *zap.Logger) *Store {
	return &Store{
		inputDir:   inputDir,
		outputPath: outputPath,
		idColumn:   idColumn,
		logger:     logging.OrNop(logger).Named("csvstore"),
	}
}

// OutputPath returns where Save writes
func (s *Store) OutputPath() string {
	return s.outputPath
}

// Load reads every *.csv in the input directory, in lexical file order, and
// concatenates their rows. Every cell is kept as text so identifiers keep
// their leading zeros; empty cells become null.
func (s *Store) Load() ([]*domain.Record, error) {
	files, err := filepath.Glob(filepath.Join(s.inputDir, "*.csv"))
	if err != nil {
		return nil, eris.Wrapf(err, "csvstore: glob %s", s.inputDir)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoInput, s.inputDir)
	}

	var records []*domain.Record
	for _, path := range files {
		rows, header, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if s.idColumn != "" && !contains(header, s.idColumn) {
			s.logger.Warn("input file has no identifier column",
				zap.String("file", path),
				zap.String("column", s.idColumn))
		}
		s.logger.Info("loaded input file", zap.String("file", path), zap.Int("rows", len(rows)))
		records = append(records, rows...)
	}

	return records, nil
}

// Save writes records to the output path
func (s *Store) Save(records []*domain.Record) error {
	return WriteFile(s.outputPath, records)
}

func readFile(path string) ([]*domain.Record, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csvstore: open %s", path)
	}
	defer f.Close()

	records, header, err := Read(f)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csvstore: read %s", path)
	}
	return records, header, nil
}

// Read parses one CSV stream. The first row is the header; duplicate header
// names get ".1", ".2" suffixes. Short rows are padded with nulls.
func Read(r io.Reader) ([]*domain.Record, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rawHeader, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	header := dedupeHeader(rawHeader)

	var records []*domain.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(row) > len(header) {
			return nil, nil, fmt.Errorf("row %d: %d fields, header has %d", line, len(row), len(header))
		}
		rec := domain.NewRecord()
		for i, col := range header {
			if i >= len(row) || row[i] == "" {
				rec.SetNull(col)
				continue
			}
			rec.SetString(col, row[i])
		}
		records = append(records, rec)
	}

	return records, header, nil
}

func dedupeHeader(raw []string) []string {
	header := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		header[i] = name
	}
	return header
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
