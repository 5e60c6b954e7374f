package csvstore

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/catalogfill/enricher/internal/domain"
)

// Columns returns the union of record keys in first-seen order
func Columns(records []*domain.Record) []string {
	var cols []string
	seen := make(map[string]struct{})
	for _, rec := range records {
		for _, k := range rec.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	return cols
}

// Write encodes records as CSV, one row per record. Null and missing values are empty.
func Write(w io.Writer, records []*domain.Record) error {
	cols := Columns(records)
	cw := csv.NewWriter(w)

	if err := cw.Write(cols); err != nil {
		return err
	}

	row := make([]string, len(cols))
	for _, rec := range records {
		for i, col := range cols {
			row[i] = ""
			if v := rec.Raw(col); v != nil {
				row[i] = *v
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes records to path, replacing any previous file. Parent
// directories are created; the file is written next to path and renamed into place.
func WriteFile(path string, records []*domain.Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "csvstore: create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".results-*.csv")
	if err != nil {
		return eris.Wrapf(err, "csvstore: create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Write(tmp, records); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "csvstore: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "csvstore: close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return eris.Wrapf(err, "csvstore: chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "csvstore: rename to %s", path)
	}

	return nil
}
