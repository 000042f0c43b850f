package store

import "strings"

// ExternalBooksSchema holds every external record ever seen, keyed by (source, external_id).
const ExternalBooksSchema = `
CREATE TABLE IF NOT EXISTS external_books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	external_id TEXT NOT NULL,
	title TEXT NOT NULL,
	authors TEXT NOT NULL DEFAULT '[]',
	description TEXT,
	isbn_10 TEXT,
	isbn_13 TEXT,
	publisher TEXT,
	published_date TEXT,
	published_year INTEGER,
	page_count INTEGER,
	categories TEXT NOT NULL DEFAULT '[]',
	language TEXT,
	thumbnail_url TEXT,
	preview_link TEXT,
	info_link TEXT,
	average_rating REAL,
	ratings_count INTEGER,
	maturity_rating TEXT,
	raw_metadata TEXT NOT NULL DEFAULT '{}',
	is_imported INTEGER NOT NULL DEFAULT 0,
	imported_book_id INTEGER,
	imported_by_id TEXT,
	imported_at TEXT,
	last_fetched_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT,
	UNIQUE (source, external_id)
);
CREATE INDEX IF NOT EXISTS idx_external_books_stale ON external_books (is_imported, last_fetched_at);
CREATE INDEX IF NOT EXISTS idx_external_books_isbn_13 ON external_books (isbn_13);
`

// TasksSchema persists task status snapshots so another process can read them.
const TasksSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY NOT NULL,
	kind TEXT NOT NULL,
	state TEXT NOT NULL,
	progress_current INTEGER NOT NULL DEFAULT 0,
	progress_total INTEGER NOT NULL DEFAULT 0,
	progress_successful INTEGER NOT NULL DEFAULT 0,
	progress_failed INTEGER NOT NULL DEFAULT 0,
	result TEXT,
	error TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// AllSchemas is applied in order by Open.
var AllSchemas = []string{ExternalBooksSchema, TasksSchema}

// upstreamColumns are the fields owned by the catalog; every re-fetch overwrites them.
var upstreamColumns = []string{
	"title",
	"authors",
	"description",
	"isbn_10",
	"isbn_13",
	"publisher",
	"published_date",
	"published_year",
	"page_count",
	"categories",
	"language",
	"thumbnail_url",
	"preview_link",
	"info_link",
	"average_rating",
	"ratings_count",
	"maturity_rating",
	"raw_metadata",
}

const recordColumns = `id, source, external_id, title, authors, description, isbn_10, isbn_13, publisher,
	published_date, published_year, page_count, categories, language, thumbnail_url, preview_link, info_link,
	average_rating, ratings_count, maturity_rating, raw_metadata, is_imported, imported_book_id, imported_by_id,
	imported_at, last_fetched_at, created_at, updated_at`

// upstreamUpdateSet is "title = excluded.title, authors = excluded.authors, ...".
var upstreamUpdateSet = func() string {
	parts := make([]string, len(upstreamColumns))
	for i, col := range upstreamColumns {
		parts[i] = col + " = excluded." + col
	}
	return strings.Join(parts, ", ")
}()

// upstreamAssignSet is "title = ?, authors = ?, ..." for plain UPDATEs.
var upstreamAssignSet = func() string {
	parts := make([]string, len(upstreamColumns))
	for i, col := range upstreamColumns {
		parts[i] = col + " = ?"
	}
	return strings.Join(parts, ", ")
}()

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
