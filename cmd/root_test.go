package cmd

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Monsterkot/diplom/internal/testutil"
)

func resetCmdState(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Reset()
	// Keep a developer's environment out of the parsed configuration
	t.Setenv("DIPLOM_STORE_PATH", "")
	t.Setenv("GOOGLE_BOOKS_API_KEY", "")
}

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	originalArgs := os.Args
	os.Args = append([]string{"diplom"}, args...)
	t.Cleanup(func() { os.Args = originalArgs })

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("diplom"),
		kong.Description("Search external book catalogs and import their records."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)

	return cli, ctx
}

func TestUpdateGlobalConfig(t *testing.T) {
	resetCmdState(t)

	updateGlobalConfig(&CLI{DB: "/tmp/diplom-test.db"})
	assert.Equal(t, "/tmp/diplom-test.db", viper.GetString("store.path"))
}

func TestUpdateGlobalConfigKeepsConfiguredPath(t *testing.T) {
	resetCmdState(t)

	viper.Set("store.path", "/data/books.db")
	updateGlobalConfig(&CLI{})
	assert.Equal(t, "/data/books.db", viper.GetString("store.path"))
}

func TestInitConfigWithoutFileUsesDefaults(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)
	env.Chdir("")

	require.NoError(t, initConfig(""))
	assert.Equal(t, "./diplom.db", viper.GetString("store.path"))
	assert.Equal(t, 10, viper.GetInt("bulk.async_threshold"))
}

func TestInitConfigReadsFile(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)
	env.WriteFileString("custom.yaml", "bulk:\n  async_threshold: 3\nstaleness:\n  max_age: 48h\n")

	require.NoError(t, initConfig(env.Path("custom.yaml")))
	assert.Equal(t, 3, viper.GetInt("bulk.async_threshold"))
	assert.Equal(t, 48*time.Hour, viper.GetDuration("staleness.max_age"))
}

func TestInitConfigMissingExplicitFileFails(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)

	assert.Error(t, initConfig(env.Path("missing.yaml")))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLevel(input), input)
	}
}

func TestSearchCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, ctx := parseCLI(t, "search", "dune", "-s", "google_books", "-s", "open_library", "-n", "5", "-i", "--language", "en")

	assert.Equal(t, "search <query>", ctx.Command())
	assert.Equal(t, "dune", cli.Search.Query)
	assert.Equal(t, []string{"google_books", "open_library"}, cli.Search.Source)
	assert.Equal(t, 5, cli.Search.Limit)
	assert.True(t, cli.Search.Interactive)
	assert.Equal(t, "en", cli.Search.Language)
}

func TestSearchCommandDefaults(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "search", "dune")

	assert.Equal(t, 10, cli.Search.Limit)
	assert.Empty(t, cli.Search.Source)
	assert.False(t, cli.Search.Interactive)
	assert.Equal(t, "info", cli.LogLevel)
}

func TestImportCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, ctx := parseCLI(t, "--db", "books.db", "import", "open_library", "OL45883W", "--actor", "librarian", "--title", "Custom")

	assert.Equal(t, "import <source> <id>", ctx.Command())
	assert.Equal(t, "books.db", cli.DB)
	assert.Equal(t, "open_library", cli.Import.Source)
	assert.Equal(t, "OL45883W", cli.Import.ExternalID)
	assert.Equal(t, "librarian", cli.Import.Actor)
	assert.Equal(t, "Custom", cli.Import.Title)
}

func TestBulkCommandParsing(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)
	env.WriteFileString("books.yaml", "items: []\n")

	cli, _ := parseCLI(t, "bulk", "-f", env.Path("books.yaml"), "--async", "--no-progress")

	assert.Equal(t, env.Path("books.yaml"), cli.Bulk.File)
	assert.True(t, cli.Bulk.Async)
	assert.True(t, cli.Bulk.NoProgress)
}

func TestRefreshAndServeParsing(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "refresh", "--max-age", "48h", "--batch-size", "5")
	assert.Equal(t, 48*time.Hour, cli.Refresh.MaxAge)
	assert.Equal(t, 5, cli.Refresh.BatchSize)

	cli, _ = parseCLI(t, "serve", "--interval", "1h", "--metrics-addr", "127.0.0.1:9191")
	assert.Equal(t, time.Hour, cli.Serve.Interval)
	assert.Equal(t, "127.0.0.1:9191", cli.Serve.MetricsAddr)
}

func TestCachedCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, ctx := parseCLI(t, "cached", "link", "3", "42")
	assert.Equal(t, "cached link <id> <local-id>", ctx.Command())
	assert.Equal(t, int64(3), cli.Cached.Link.ID)
	assert.Equal(t, int64(42), cli.Cached.Link.LocalBookID)

	cli, _ = parseCLI(t, "cached", "list", "-s", "open_library", "--imported-only", "--limit", "5")
	assert.Equal(t, "open_library", cli.Cached.List.Source)
	assert.True(t, cli.Cached.List.ImportedOnly)
	assert.Equal(t, 5, cli.Cached.List.Limit)
	assert.Equal(t, 0, cli.Cached.List.Offset)
}

func TestDetailsCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, ctx := parseCLI(t, "details", "open_library", "/works/OL1W")

	assert.Equal(t, "details <source> <id>", ctx.Command())
	assert.Equal(t, "open_library", cli.Details.Source)
	assert.Equal(t, "/works/OL1W", cli.Details.ExternalID)
}
