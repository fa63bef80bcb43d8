package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

var (
	recA = Record{Domain: "https://a.test", Title: "A", ExtractedDate: "01 March 2024 Friday 09:00 AM"}
	recB = Record{Domain: "https://b.test", Title: "B, with comma", ExtractedDate: "01 March 2024 Friday 09:00 AM"}
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "found_domains.csv"))
}

func TestLoad_MissingFile(t *testing.T) {
	s := newStore(t)
	tbl, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tbl) != 0 {
		t.Errorf("expected empty table, got %d rows", len(tbl))
	}
}

func TestLoad_Malformed(t *testing.T) {
	s := newStore(t)
	cases := map[string]string{
		"wrong field count": "Domain,Title,Extracted Date\nonly,two\n",
		"wrong header":      "Host,Title,Date\na,b,c\n",
		"bad quoting":       "Domain,Title,Extracted Date\n\"unterminated,b,c\n",
	}
	for name, body := range cases {
		if err := os.WriteFile(s.Path(), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Load(); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: got %v, want ErrMalformed", name, err)
		}
	}
}

func TestMerge_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	got, err := s.Merge(ctx, []Record{recA, recB})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows: got %d, want 2", len(got))
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || loaded[0] != recA || loaded[1] != recB {
		t.Errorf("loaded: got %+v", loaded)
	}
}

func TestMerge_IdenticalRecordsDoNotGrow(t *testing.T) {
	// WHAT: Merging the same records twice leaves the table unchanged.
	// WHY: The table is append-only but never holds two identical rows.
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Merge(ctx, []Record{recA, recB}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Merge(ctx, []Record{recA, recB})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("rows after second merge: got %d, want 2", len(got))
	}
}

func TestMerge_NewTimestampIsNewRow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Merge(ctx, []Record{recA}); err != nil {
		t.Fatal(err)
	}
	later := recA
	later.ExtractedDate = "02 March 2024 Saturday 10:00 AM"
	got, err := s.Merge(ctx, []Record{later})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("rows: got %d, want 2", len(got))
	}
	if got[0] != recA || got[1] != later {
		t.Errorf("order: got %+v", got)
	}
}

func TestMerge_MalformedIsFatal(t *testing.T) {
	s := newStore(t)
	if err := os.WriteFile(s.Path(), []byte("garbage\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Merge(context.Background(), []Record{recA}); !errors.Is(err, ErrMalformed) {
		t.Errorf("got %v, want ErrMalformed", err)
	}
	data, _ := os.ReadFile(s.Path())
	if string(data) != "garbage\"\n" {
		t.Error("malformed file must not be overwritten")
	}
}

func TestMerge_ConcurrentWritersKeepAllRows(t *testing.T) {
	// WHAT: Parallel merges on one Store lose no rows.
	s := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := recA
			r.Title = string(rune('a' + i))
			if _, err := s.Merge(ctx, []Record{r}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	tbl, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl) != 20 {
		t.Errorf("rows: got %d, want 20", len(tbl))
	}
}

func TestMerge_CanceledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Merge(ctx, []Record{recA}); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestDedup_KeepsFirstOccurrence(t *testing.T) {
	got := Dedup(Table{recB, recA, recB, recA})
	if len(got) != 2 || got[0] != recB || got[1] != recA {
		t.Errorf("got %+v", got)
	}
}

func TestEncodeCSV(t *testing.T) {
	data, err := EncodeCSV(Table{recB})
	if err != nil {
		t.Fatal(err)
	}
	want := "Domain,Title,Extracted Date\nhttps://b.test,\"B, with comma\",01 March 2024 Friday 09:00 AM\n"
	if string(data) != want {
		t.Errorf("got %q\nwant %q", data, want)
	}

	empty, _ := EncodeCSV(nil)
	if string(empty) != "Domain,Title,Extracted Date\n" {
		t.Errorf("empty: got %q", empty)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "dir", "found_domains.csv"))
	if err := s.Save(Table{recA}); err != nil {
		t.Fatalf("save: %v", err)
	}
	tbl, err := s.Load()
	if err != nil || len(tbl) != 1 {
		t.Errorf("load: %v, %d rows", err, len(tbl))
	}
}
