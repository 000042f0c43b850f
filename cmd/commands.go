package cmd

import (
	"fmt"
	"strings"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/importer"
)

// SourcesCmd lists the catalogs and their capabilities
type SourcesCmd struct{}

// ImportCmd imports a single external book
type ImportCmd struct {
	Source      string `arg:"" help:"Catalog the book comes from (google_books, open_library)"`
	ExternalID  string `arg:"" name:"id" help:"The catalog's id for the book"`
	Actor       string `help:"Actor recorded as the importer"`
	Title       string `help:"Override the catalog title"`
	Description string `help:"Override the catalog description"`
	Language    string `help:"Override the catalog language"`
}

// DetailsCmd fetches one book live and reports its cached import state
type DetailsCmd struct {
	Source     string `arg:"" help:"Catalog the book comes from (google_books, open_library)"`
	ExternalID string `arg:"" name:"id" help:"The catalog's id for the book"`
}

// StatusCmd shows a background task's status
type StatusCmd struct {
	ID string `arg:"" help:"Task handle printed by bulk or refresh"`
}

func (c *SourcesCmd) Run(g *Globals) error {
	return withApp(g, func(app *App) error {
		infos := make([]book.SourceInfo, 0, len(app.Registry.Sources()))
		for _, source := range app.Registry.Sources() {
			adapter, err := app.Registry.Get(source)
			if err != nil {
				return err
			}
			if describer, ok := adapter.(book.Describer); ok {
				infos = append(infos, describer.Describe())
				continue
			}
			infos = append(infos, book.SourceInfo{ID: source, Name: source.DisplayName(), Features: []string{}})
		}
		return writeJSON(g.Out, map[string]any{"sources": infos})
	})
}

func (c *ImportCmd) Run(g *Globals) error {
	source, err := book.ParseSource(c.Source)
	if err != nil {
		return err
	}

	req := importer.Request{
		Source:     source,
		ExternalID: c.ExternalID,
		Overrides: book.Overrides{
			Title:       optional(c.Title),
			Description: optional(c.Description),
			Language:    optional(c.Language),
		},
	}

	return withApp(g, func(app *App) error {
		outcome, err := app.Importer.ImportOne(g.Context(), req, c.Actor)
		if err != nil {
			return err
		}
		if err := writeJSON(g.Out, outcome); err != nil {
			return err
		}
		if !outcome.Success {
			return fmt.Errorf("import of %s:%s failed: %s", source, req.ExternalID, outcome.Error)
		}
		return nil
	})
}

func (c *DetailsCmd) Run(g *Globals) error {
	source, err := book.ParseSource(c.Source)
	if err != nil {
		return err
	}

	return withApp(g, func(app *App) error {
		lookup, err := app.Importer.Lookup(g.Context(), book.Key{Source: source, ExternalID: c.ExternalID})
		if err != nil {
			return err
		}
		return writeJSON(g.Out, lookup)
	})
}

func (c *StatusCmd) Run(g *Globals) error {
	return withApp(g, func(app *App) error {
		status, err := app.Queue.Status(g.Context(), c.ID)
		if err != nil {
			return err
		}
		return writeJSON(g.Out, status)
	})
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
