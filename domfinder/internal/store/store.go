// CLAUDE:SUMMARY CSV-backed result table: load, dedup-merge and atomic overwrite of found_domains.csv under a mutex.
// Package store persists the cumulative result table as a CSV file.
package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Header is the CSV header row.
var Header = []string{"Domain", "Title", "Extracted Date"}

// ErrMalformed is returned when the storage file cannot be parsed.
var ErrMalformed = errors.New("store: malformed storage file")

// Record is one row: a domain, its title and when it was extracted.
type Record struct {
	Domain        string `json:"domain"`
	Title         string `json:"title"`
	ExtractedDate string `json:"extracted_date"`
}

// Table is an ordered list of records.
type Table []Record

// Dedup returns t without exact duplicate rows, keeping first occurrences in order.
func Dedup(t Table) Table {
	seen := make(map[Record]struct{}, len(t))
	out := make(Table, 0, len(t))
	for _, r := range t {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Store reads and writes one CSV file. Merge is serialised per Store, so
// all writers in a process must share the same Store.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store backed by path. The file need not exist.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the storage file path.
func (s *Store) Path() string { return s.path }

// Load reads the table. A missing file yields an empty table.
func (s *Store) Load() (Table, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", s.path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses CSV with a header row and three columns per record.
func Decode(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(rows) == 0 {
		return Table{}, nil
	}
	for i, col := range Header {
		if rows[0][i] != col {
			return nil, fmt.Errorf("%w: header column %d is %q, want %q", ErrMalformed, i+1, rows[0][i], col)
		}
	}
	t := make(Table, 0, len(rows)-1)
	for _, row := range rows[1:] {
		t = append(t, Record{Domain: row[0], Title: row[1], ExtractedDate: row[2]})
	}
	return t, nil
}

// Merge appends records to the stored table, drops exact duplicates and
// overwrites the file. It returns the combined table.
func (s *Store) Merge(ctx context.Context, records []Record) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, err := s.Load()
	if err != nil {
		return nil, err
	}
	combined := Dedup(append(current, records...))
	if err := s.save(combined); err != nil {
		return nil, err
	}
	return combined, nil
}

// Save overwrites the file with t.
func (s *Store) Save(t Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(t)
}

// save writes to a temp file in the same directory and renames it over the
// target, so readers never observe a half-written table.
func (s *Store) save(t Table) error {
	data, err := EncodeCSV(t)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: chmod: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

// EncodeCSV serialises t with the header row.
func EncodeCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	for _, r := range t {
		if err := w.Write([]string{r.Domain, r.Title, r.ExtractedDate}); err != nil {
			return nil, fmt.Errorf("store: encode: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return buf.Bytes(), nil
}
