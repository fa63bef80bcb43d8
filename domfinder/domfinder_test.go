package domfinder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/domfinder/dbopen"
	"github.com/hazyhaar/domfinder/domfinder/internal/resolve"
	"github.com/hazyhaar/domfinder/domfinder/internal/store"
	"github.com/hazyhaar/domfinder/idgen"
	"github.com/hazyhaar/domfinder/observability"

	_ "modernc.org/sqlite"
)

// fakeResolver answers from a map and records the order of calls.
type fakeResolver struct {
	mu     sync.Mutex
	titles map[string]resolve.Resolution
	calls  []string
}

func (f *fakeResolver) Resolve(ctx context.Context, rawURL string) resolve.Resolution {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if res, ok := f.titles[rawURL]; ok {
		return res
	}
	return resolve.Resolution{Title: resolve.TitleConnectionFailed, URL: rawURL, Err: errors.New("no such host")}
}

type fixedSource int

func (f fixedSource) IntN(n int) int { return int(f) % n }

var testNow = time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC)

type testEnv struct {
	svc      *Service
	resolver *fakeResolver
	events   *observability.EventLogger
	dir      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(observability.Schema))
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := observability.NewEventLogger(db,
		observability.WithEventIDGenerator(idgen.Sequence("evt")),
		observability.WithClock(func() time.Time { return testNow }),
		observability.WithLogger(quiet),
	)
	fr := &fakeResolver{titles: map[string]resolve.Resolution{
		"http://example.com":    {Title: "Example Domain", URL: "http://example.com/"},
		"https://www.test.org":  {Title: resolve.TitleUnavailable, URL: "https://www.test.org/home"},
		"https://alpha.example": {Title: "Alpha", URL: "https://alpha.example/"},
	}}
	dir := t.TempDir()
	svc, err := New(Config{DataDir: dir},
		WithResolver(fr),
		WithHistory(events),
		WithLogger(quiet),
		WithClock(func() time.Time { return testNow }),
		WithRandom(fixedSource(0)),
		WithRunIDGenerator(idgen.Sequence("run")),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{svc: svc, resolver: fr, events: events, dir: dir}
}

func TestExtract_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	sess := env.svc.Sessions().Get("")

	run, err := env.svc.Extract(context.Background(), sess, "visit http://example.com and www.test.org", false)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(run.Records) != 2 {
		t.Fatalf("records: got %d", len(run.Records))
	}
	want := []Record{
		{Domain: "http://example.com", Title: "Example Domain", ExtractedDate: "05 March 2024 Tuesday 02:07 PM"},
		{Domain: "https://www.test.org", Title: resolve.TitleUnavailable, ExtractedDate: "05 March 2024 Tuesday 02:07 PM"},
	}
	for i := range want {
		if run.Records[i] != want[i] {
			t.Errorf("record %d: got %+v, want %+v", i, run.Records[i], want[i])
		}
	}
	if got := env.resolver.calls; len(got) != 2 || got[0] != "http://example.com" || got[1] != "https://www.test.org" {
		t.Errorf("resolution order: %v", got)
	}
	if len(run.Hostnames) != 2 || run.Hostnames[0] != "example.com" || run.Hostnames[1] != "www.test.org" {
		t.Errorf("hostnames: %v", run.Hostnames)
	}
	if run.ID != "run-1" {
		t.Errorf("run id: %q", run.ID)
	}
	if run.Report == nil || len(run.Report.Document) == 0 {
		t.Fatal("report missing")
	}
	if run.StoredRows != 2 {
		t.Errorf("stored rows: %d", run.StoredRows)
	}
	if !sess.ExistingLoaded() || sess.LastRun() != run {
		t.Error("session should hold the run")
	}

	stored, err := store.New(env.svc.StoragePath()).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || stored[0] != want[0] {
		t.Errorf("stored: %+v", stored)
	}
}

func TestExtract_SameRunTwiceDoesNotGrow(t *testing.T) {
	// WHAT: Identical records merged twice are stored once.
	// WHY: The clock is frozen, so both runs produce identical rows.
	env := newTestEnv(t)
	sess := env.svc.Sessions().Get("")
	ctx := context.Background()

	for range 2 {
		if _, err := env.svc.Extract(ctx, sess, "http://example.com", false); err != nil {
			t.Fatal(err)
		}
	}
	run := sess.LastRun()
	if run.StoredRows != 1 {
		t.Errorf("stored rows: got %d, want 1", run.StoredRows)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	env := newTestEnv(t)
	sess := env.svc.Sessions().Get("")

	run, err := env.svc.Extract(context.Background(), sess, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.URLs) != 0 || len(run.Records) != 0 {
		t.Errorf("expected empty run, got %+v", run)
	}
	if len(env.resolver.calls) != 0 {
		t.Error("empty input must not fetch")
	}
}

func TestExtract_Reload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prior := Record{Domain: "https://old.example", Title: "Old", ExtractedDate: "01 January 2024 Monday 09:00 AM"}
	if err := store.New(env.svc.StoragePath()).Save(Table{prior}); err != nil {
		t.Fatal(err)
	}

	sess := env.svc.Sessions().Get("")
	run, err := env.svc.Extract(ctx, sess, "http://example.com", true)
	if err != nil {
		t.Fatal(err)
	}
	if run.ExistingRows != 1 {
		t.Errorf("existing rows: got %d, want 1", run.ExistingRows)
	}
	if run.StoredRows != 2 {
		t.Errorf("stored rows: got %d, want 2", run.StoredRows)
	}
	snap := sess.Snapshot()
	if len(snap) != 2 || snap[0] != prior {
		t.Errorf("snapshot: %+v", snap)
	}

	// Without reload a fresh session starts from an empty snapshot, but the
	// merge still goes against the file.
	other := env.svc.Sessions().Get("")
	run, err = env.svc.Extract(ctx, other, "alpha.example", false)
	if err != nil {
		t.Fatal(err)
	}
	if run.ExistingRows != 0 || run.StoredRows != 3 {
		t.Errorf("existing=%d stored=%d, want 0 and 3", run.ExistingRows, run.StoredRows)
	}
}

func TestExtract_MalformedStorageIsFatal(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(env.svc.StoragePath(), []byte("not\"csv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sess := env.svc.Sessions().Get("")

	run, err := env.svc.Extract(context.Background(), sess, "http://example.com", false)
	if !errors.Is(err, ErrStorage) || !errors.Is(err, store.ErrMalformed) {
		t.Fatalf("got %v, want ErrStorage wrapping ErrMalformed", err)
	}
	if run != nil {
		t.Error("no partial run on storage failure")
	}
	if sess.LastRun() != nil {
		t.Error("session must not record a failed run")
	}

	events, _ := env.svc.History(context.Background(), 10)
	if len(events) != 1 || events[0].Type != observability.EventExtractionFailed {
		t.Errorf("history: %+v", events)
	}
}

func TestExtract_History(t *testing.T) {
	env := newTestEnv(t)
	sess := env.svc.Sessions().Get("")
	if _, err := env.svc.Extract(context.Background(), sess, "http://example.com nowhere.invalid", false); err != nil {
		t.Fatal(err)
	}

	events, err := env.svc.History(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("events: got %d, want 3", len(events))
	}
	var runs, ok, failed int
	for _, ev := range events {
		if ev.RunID != "run-1" {
			t.Errorf("event %s run id: %q", ev.ID, ev.RunID)
		}
		switch {
		case ev.Type == observability.EventExtractionRun:
			runs++
		case ev.Success:
			ok++
		default:
			failed++
			if ev.Outcome != resolve.TitleConnectionFailed {
				t.Errorf("failed outcome: %q", ev.Outcome)
			}
		}
	}
	if runs != 1 || ok != 1 || failed != 1 {
		t.Errorf("runs=%d ok=%d failed=%d", runs, ok, failed)
	}
}

func TestExtract_CanceledContextStillStores(t *testing.T) {
	env := newTestEnv(t)
	sess := env.svc.Sessions().Get("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := env.svc.Extract(ctx, sess, "http://example.com", false)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if run.StoredRows != 1 {
		t.Errorf("stored rows: %d", run.StoredRows)
	}
}

func TestDownloadCSV(t *testing.T) {
	env := newTestEnv(t)
	sess := env.svc.Sessions().Get("")

	data, err := env.svc.DownloadCSV(sess)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Domain,Title,Extracted Date\n" {
		t.Errorf("empty download: %q", data)
	}

	if _, err := env.svc.Extract(context.Background(), sess, "http://example.com", false); err != nil {
		t.Fatal(err)
	}
	data, err = env.svc.DownloadCSV(env.svc.Sessions().Get(""))
	if err != nil {
		t.Fatal(err)
	}
	want := "Domain,Title,Extracted Date\nhttp://example.com,Example Domain,05 March 2024 Tuesday 02:07 PM\n"
	if string(data) != want {
		t.Errorf("got %q\nwant %q", data, want)
	}
}

func TestLastRun_NoRun(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.LastRun(env.svc.Sessions().Get("")); !errors.Is(err, ErrNoRun) {
		t.Errorf("got %v, want ErrNoRun", err)
	}
}

func TestNew_RejectsEscapingStorageFile(t *testing.T) {
	_, err := New(Config{DataDir: t.TempDir(), StorageFile: "../outside.csv"})
	if err == nil {
		t.Fatal("expected error for storage file outside the data dir")
	}
}

func TestNew_HistoryDisabled(t *testing.T) {
	svc, err := New(Config{DataDir: t.TempDir()}, WithResolver(&fakeResolver{}))
	if err != nil {
		t.Fatal(err)
	}
	events, err := svc.History(context.Background(), 10)
	if err != nil || len(events) != 0 {
		t.Errorf("disabled history: %v, %d events", err, len(events))
	}
	if filepath.Base(svc.StoragePath()) != "found_domains.csv" {
		t.Errorf("default storage file: %s", svc.StoragePath())
	}
}
