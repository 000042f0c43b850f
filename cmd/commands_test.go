package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/stretchr/testify/require"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/config"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/importer"
	"github.com/Monsterkot/diplom/internal/store"
	"github.com/Monsterkot/diplom/internal/tasks"
	"github.com/Monsterkot/diplom/internal/testutil"
	"github.com/Monsterkot/diplom/internal/tui"
)

type testCatalogs struct {
	env    *testutil.TestEnv
	cfg    config.Config
	google *testutil.FakeAdapter
	open   *testutil.FakeAdapter
}

// setupCatalogs points openApp at fake catalogs and a store inside a temp dir.
func setupCatalogs(t *testing.T) *testCatalogs {
	t.Helper()
	resetCmdState(t)

	env := testutil.NewTestEnv(t)
	cfg := testutil.SetTestConfig(t, env, map[string]any{
		"bulk.throttle":                "1ms",
		"retry.interactive.base_delay": "1ms",
		"retry.bulk.base_delay":        "1ms",
		"retry.refresh.base_delay":     "1ms",
	})

	tc := &testCatalogs{
		env:    env,
		cfg:    cfg,
		google: testutil.NewFakeAdapter(book.GoogleBooks).WithBook(testutil.NewBook(book.GoogleBooks, "vol1", "Dune")),
		open:   testutil.NewFakeAdapter(book.OpenLibrary).WithBook(testutil.NewBook(book.OpenLibrary, "OL1W", "Dune Messiah")),
	}

	orig := openApp
	openApp = func(cfg config.Config) (*App, error) {
		return newApp(cfg, tc.google, tc.open)
	}
	t.Cleanup(func() { openApp = orig })

	origPoll := pollInterval
	pollInterval = 5 * time.Millisecond
	t.Cleanup(func() { pollInterval = origPoll })

	return tc
}

type runner interface {
	Run(g *Globals) error
}

func (tc *testCatalogs) run(t *testing.T, cmd runner) ([]byte, error) {
	t.Helper()

	var out bytes.Buffer
	err := cmd.Run(&Globals{Config: tc.cfg, Out: &out})
	return out.Bytes(), err
}

func (tc *testCatalogs) mustRun(t *testing.T, cmd runner) []byte {
	t.Helper()

	out, err := tc.run(t, cmd)
	require.NoError(t, err)
	return out
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestSourcesCommand(t *testing.T) {
	tc := setupCatalogs(t)

	out := tc.mustRun(t, &SourcesCmd{})

	gh := testutil.NewGoldenHelper(t, "testdata")
	gh.AssertGoldenJSON("sources.golden.json", out)
}

func TestImportCommand(t *testing.T) {
	tc := setupCatalogs(t)

	out := tc.mustRun(t, &ImportCmd{Source: "google_books", ExternalID: "vol1", Actor: "librarian", Title: "Dune (Deluxe)"})
	outcome := decode[book.Outcome](t, out)
	assert.True(t, outcome.Success)
	assert.Equal(t, importer.MessageImported, outcome.Message)
	require.NotNil(t, outcome.RecordID)

	// A second import is answered from the store.
	out = tc.mustRun(t, &ImportCmd{Source: "google_books", ExternalID: "vol1"})
	again := decode[book.Outcome](t, out)
	assert.True(t, again.Success)
	assert.Equal(t, importer.MessageAlreadyImported, again.Message)
	assert.Equal(t, *outcome.RecordID, *again.RecordID)
	assert.Equal(t, 1, tc.google.DetailCalls("vol1"))

	out = tc.mustRun(t, &CachedShowCmd{ID: *outcome.RecordID})
	record := decode[book.Record](t, out)
	assert.Equal(t, "Dune (Deluxe)", record.Title)
	assert.True(t, record.IsImported)
	require.NotNil(t, record.ImportedByID)
	assert.Equal(t, "librarian", *record.ImportedByID)
}

func TestImportCommandFailure(t *testing.T) {
	tc := setupCatalogs(t)

	out, err := tc.run(t, &ImportCmd{Source: "open_library", ExternalID: "OL404W"})
	assert.Error(t, err)

	outcome := decode[book.Outcome](t, out)
	assert.False(t, outcome.Success)
	assert.Equal(t, importer.MessageFetchFailed, outcome.Message)
	assert.Contains(t, outcome.Error, "OL404W")
}

func TestImportCommandRejectsUnknownSource(t *testing.T) {
	tc := setupCatalogs(t)

	_, err := tc.run(t, &ImportCmd{Source: "amazon", ExternalID: "B000"})
	assert.True(t, errors.IsValidationError(err))
}

func TestSearchCommandAnnotatesImportState(t *testing.T) {
	tc := setupCatalogs(t)
	tc.mustRun(t, &ImportCmd{Source: "google_books", ExternalID: "vol1"})

	out := tc.mustRun(t, &SearchCmd{Query: "dune", Limit: 10})
	result := decode[searchOutput](t, out)

	assert.Equal(t, "dune", result.Query)
	require.Len(t, result.Results, 2)

	google := result.Results[0]
	assert.Equal(t, book.GoogleBooks, google.Source)
	require.Len(t, google.Items, 1)
	assert.True(t, google.Items[0].IsImported)
	assert.NotZero(t, google.Items[0].RecordID)

	open := result.Results[1]
	assert.Equal(t, book.OpenLibrary, open.Source)
	require.Len(t, open.Items, 1)
	assert.False(t, open.Items[0].IsImported)
	// Seen results are cached even when not imported.
	assert.NotZero(t, open.Items[0].RecordID)
}

func TestSearchCommandSingleSource(t *testing.T) {
	tc := setupCatalogs(t)

	out := tc.mustRun(t, &SearchCmd{Query: "messiah", Source: []string{"open_library", "OPEN_LIBRARY"}, Limit: 10})
	result := decode[searchOutput](t, out)

	require.Len(t, result.Results, 1)
	assert.Equal(t, book.OpenLibrary, result.Results[0].Source)
	assert.Equal(t, 0, tc.google.SearchCalls())
	assert.Equal(t, 1, tc.open.SearchCalls())
}

func TestSearchCommandInteractiveImportsSelection(t *testing.T) {
	tc := setupCatalogs(t)

	var offered []book.Result
	orig := selectBook
	selectBook = func(title string, results []book.Result) (tui.SelectionResult, error) {
		offered = results
		chosen := results[1]
		return tui.SelectionResult{Action: tui.ActionSelected, Selection: &chosen}, nil
	}
	t.Cleanup(func() { selectBook = orig })

	out := tc.mustRun(t, &SearchCmd{Query: "dune", Limit: 10, Interactive: true})

	require.Len(t, offered, 2)
	outcome := decode[book.Outcome](t, out)
	assert.True(t, outcome.Success)
	assert.Equal(t, book.OpenLibrary, outcome.Source)
	assert.Equal(t, "OL1W", outcome.ExternalID)
}

func TestSearchCommandInteractiveStop(t *testing.T) {
	tc := setupCatalogs(t)

	orig := selectBook
	selectBook = func(string, []book.Result) (tui.SelectionResult, error) {
		return tui.SelectionResult{Action: tui.ActionStopped}, nil
	}
	t.Cleanup(func() { selectBook = orig })

	_, err := tc.run(t, &SearchCmd{Query: "dune", Limit: 10, Interactive: true})
	assert.True(t, errors.IsStopProcessingError(err))
}

const testManifest = `actor: librarian
items:
  - source: google_books
    external_id: vol1
  - source: open_library
    external_id: OL404W
  - source: open_library
    external_id: OL1W
    language: en
`

func TestBulkCommandReportsPartialFailure(t *testing.T) {
	tc := setupCatalogs(t)
	tc.env.WriteFileString("books.yaml", testManifest)

	out := tc.mustRun(t, &BulkCmd{File: tc.env.Path("books.yaml"), NoProgress: true})
	report := decode[book.Report](t, out)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 3)
	assert.Equal(t, "vol1", report.Results[0].ExternalID)
	assert.True(t, report.Results[0].Success)
	assert.Equal(t, "OL404W", report.Results[1].ExternalID)
	assert.False(t, report.Results[1].Success)
	assert.Equal(t, "OL1W", report.Results[2].ExternalID)
	assert.True(t, report.Results[2].Success)
}

func TestBulkCommandAsyncWaitsForTask(t *testing.T) {
	tc := setupCatalogs(t)
	tc.env.WriteFileString("books.yaml", testManifest)

	out := tc.mustRun(t, &BulkCmd{File: tc.env.Path("books.yaml"), Async: true, NoProgress: true})
	status := decode[tasks.Status](t, out)

	assert.Equal(t, importer.KindBulkImport, status.Kind)
	assert.Equal(t, tasks.StateSucceeded, status.State)
	assert.Equal(t, 3, status.Progress.Current)

	report := decode[book.Report](t, status.Result)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.Failed)

	// The snapshot outlives the process that ran the task.
	out = tc.mustRun(t, &StatusCmd{ID: status.ID})
	persisted := decode[tasks.Status](t, out)
	assert.Equal(t, tasks.StateSucceeded, persisted.State)
}

func TestBulkCommandWithProgressBar(t *testing.T) {
	tc := setupCatalogs(t)
	tc.env.WriteFileString("books.yaml", testManifest)

	var progress bytes.Buffer
	orig := progressOut
	progressOut = &progress
	t.Cleanup(func() { progressOut = orig })

	out := tc.mustRun(t, &BulkCmd{File: tc.env.Path("books.yaml"), Actor: "override"})
	report := decode[book.Report](t, out)
	assert.Equal(t, 3, report.Total)
	assert.NotZero(t, progress.Len())
}

func TestStatusCommandUnknownTask(t *testing.T) {
	tc := setupCatalogs(t)

	_, err := tc.run(t, &StatusCmd{ID: "missing"})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestCachedCommands(t *testing.T) {
	tc := setupCatalogs(t)
	out := tc.mustRun(t, &ImportCmd{Source: "google_books", ExternalID: "vol1"})
	id := *decode[book.Outcome](t, out).RecordID
	tc.mustRun(t, &SearchCmd{Query: "messiah", Limit: 10})

	page := decode[store.ListPage](t, tc.mustRun(t, &CachedListCmd{Limit: 20}))
	assert.Equal(t, 2, page.Total)

	page = decode[store.ListPage](t, tc.mustRun(t, &CachedListCmd{ImportedOnly: true, Limit: 20}))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Records, 1)
	assert.Equal(t, id, page.Records[0].ID)

	page = decode[store.ListPage](t, tc.mustRun(t, &CachedListCmd{Source: "open_library", Limit: 20}))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "OL1W", page.Records[0].ExternalID)

	record := decode[book.Record](t, tc.mustRun(t, &CachedLinkCmd{ID: id, LocalBookID: 42}))
	require.NotNil(t, record.ImportedBookID)
	assert.Equal(t, int64(42), *record.ImportedBookID)

	tc.mustRun(t, &CachedDeleteCmd{ID: id})
	_, err := tc.run(t, &CachedShowCmd{ID: id})
	assert.True(t, errors.IsNotFoundError(err))

	_, err = tc.run(t, &CachedDeleteCmd{ID: id})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestCachedListRejectsUnknownSource(t *testing.T) {
	tc := setupCatalogs(t)

	_, err := tc.run(t, &CachedListCmd{Source: "amazon"})
	assert.True(t, errors.IsValidationError(err))
}

func TestRefreshCommand(t *testing.T) {
	tc := setupCatalogs(t)
	tc.mustRun(t, &ImportCmd{Source: "google_books", ExternalID: "vol1"})
	time.Sleep(5 * time.Millisecond)

	out := tc.mustRun(t, &RefreshCmd{MaxAge: time.Millisecond})
	result := decode[refreshOutput](t, out)

	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Queued)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, tasks.StateSucceeded, result.Tasks[0].State)
	assert.Equal(t, 2, tc.google.DetailCalls("vol1"))
}

func TestRefreshCommandNothingStale(t *testing.T) {
	tc := setupCatalogs(t)
	tc.mustRun(t, &ImportCmd{Source: "google_books", ExternalID: "vol1"})

	out := tc.mustRun(t, &RefreshCmd{})
	result := decode[refreshOutput](t, out)

	assert.Equal(t, 0, result.Total)
	assert.Equal(t, 0, len(result.Tasks))
}

func TestDetailsCommand(t *testing.T) {
	tc := setupCatalogs(t)

	out := tc.mustRun(t, &DetailsCmd{Source: "open_library", ExternalID: "OL1W"})
	lookup := decode[importer.Lookup](t, out)
	assert.Equal(t, "Dune Messiah", lookup.Title)
	assert.False(t, lookup.IsImported)
	assert.NotZero(t, lookup.RecordID)

	// The lookup leaves a cached, not imported record behind.
	page := decode[store.ListPage](t, tc.mustRun(t, &CachedListCmd{Limit: 20}))
	assert.Equal(t, 1, page.Total)

	tc.mustRun(t, &ImportCmd{Source: "open_library", ExternalID: "OL1W"})
	tc.mustRun(t, &CachedLinkCmd{ID: lookup.RecordID, LocalBookID: 9})

	out = tc.mustRun(t, &DetailsCmd{Source: "open_library", ExternalID: "OL1W"})
	imported := decode[importer.Lookup](t, out)
	assert.True(t, imported.IsImported)
	assert.Equal(t, lookup.RecordID, imported.RecordID)
	require.NotNil(t, imported.ImportedBookID)
	assert.Equal(t, int64(9), *imported.ImportedBookID)
}

func TestDetailsCommandFailures(t *testing.T) {
	tc := setupCatalogs(t)
	tc.google.FailAlways("vol9", errors.NewAdapterUnavailableError("google_books", 503, nil))

	out, err := tc.run(t, &DetailsCmd{Source: "open_library", ExternalID: "OL404W"})
	assert.True(t, errors.IsNotFoundError(err))
	assert.Equal(t, 0, len(out))

	_, err = tc.run(t, &DetailsCmd{Source: "google_books", ExternalID: "vol9"})
	assert.True(t, errors.IsAdapterUnavailableError(err))

	_, err = tc.run(t, &DetailsCmd{Source: "amazon", ExternalID: "B000"})
	assert.True(t, errors.IsValidationError(err))
}
