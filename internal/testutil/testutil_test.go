package testutil

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
)

func TestTestEnv_Path(t *testing.T) {
	env := NewTestEnv(t)

	path := env.Path("subdir", "file.txt")

	assert.True(t, strings.HasPrefix(path, env.RootDir()))
	assert.True(t, strings.HasSuffix(path, filepath.Join("subdir", "file.txt")))
}

func TestTestEnv_WriteReadFileString(t *testing.T) {
	env := NewTestEnv(t)

	env.WriteFileString("nested/dir/manifest.yaml", "items: []")

	assert.True(t, env.FileExists("nested/dir/manifest.yaml"))
	assert.Equal(t, "items: []", env.ReadFileString("nested/dir/manifest.yaml"))
	assert.False(t, env.FileExists("missing.yaml"))
}

func TestTestEnv_String(t *testing.T) {
	env := NewTestEnv(t)
	assert.Contains(t, env.String(), env.RootDir())
}

func TestGoldenHelper_AssertGoldenJSON(t *testing.T) {
	env := NewTestEnv(t)
	env.WriteFileString("golden/out.json", `{"a": 1, "b": [1, 2]}`)

	g := NewGoldenHelper(t, env.Path("golden"))
	g.AssertGoldenJSON("out.json", []byte(`{"b":[1,2],"a":1}`))
	assert.Equal(t, env.Path("golden", "out.json"), g.GoldenPath("out.json"))
}

func TestSetTestConfig(t *testing.T) {
	env := NewTestEnv(t)

	cfg := SetTestConfig(t, env, map[string]any{"bulk.async_threshold": 2})

	assert.Equal(t, env.Path("diplom.db"), cfg.Store.Path)
	assert.Equal(t, 2, cfg.Bulk.AsyncThreshold)
	assert.Equal(t, "test-google-key", viper.GetString("sources.google_books_api_key"))
}

func TestResetConfig(t *testing.T) {
	viper.Set("leftover", "value")

	ResetConfig(t)

	assert.False(t, viper.IsSet("leftover"))
}

func TestFakeAdapterSearchAndDetails(t *testing.T) {
	fake := NewFakeAdapter(book.OpenLibrary).
		WithBook(NewBook(book.OpenLibrary, "OL1W", "The Hobbit")).
		WithBook(NewBook(book.OpenLibrary, "OL2W", "Dune"))

	res, err := fake.Search(context.Background(), book.Query{Text: "hobbit"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "OL1W", res.Items[0].ExternalID)
	assert.Equal(t, 1, fake.SearchCalls())

	got, err := fake.GetDetails(context.Background(), "OL2W")
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)

	_, err = fake.GetDetails(context.Background(), "missing")
	assert.True(t, errors.IsNotFoundError(err))
	assert.Equal(t, 2, fake.TotalDetailCalls())
}

func TestFakeAdapterScriptedFailures(t *testing.T) {
	fake := NewFakeAdapter(book.GoogleBooks).
		WithBook(NewBook(book.GoogleBooks, "vol", "Title")).
		FailNext("vol", errors.NewRateLimitError("google_books", ""))

	_, err := fake.GetDetails(context.Background(), "vol")
	assert.True(t, errors.IsRateLimitError(err))

	_, err = fake.GetDetails(context.Background(), "vol")
	assert.NoError(t, err)
	assert.Equal(t, 2, fake.DetailCalls("vol"))
}

func TestNewTestStoreAndClock(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := NewClock(start)

	s := NewTestStore(t)
	assert.NotEmpty(t, s.Path())

	clock.Set(start.Add(time.Hour))
	assert.Equal(t, start.Add(time.Hour), clock.Now())
}
