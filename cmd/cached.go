package cmd

import (
	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/store"
)

// CachedCmd groups the cached record commands
type CachedCmd struct {
	List   CachedListCmd   `cmd:"" help:"List cached records, newest first"`
	Show   CachedShowCmd   `cmd:"" help:"Show one cached record"`
	Link   CachedLinkCmd   `cmd:"" help:"Record the local book an imported record became"`
	Delete CachedDeleteCmd `cmd:"" help:"Delete a cached record"`
}

// CachedListCmd lists cached records
type CachedListCmd struct {
	Source       string `short:"s" help:"Only records from this catalog"`
	ImportedOnly bool   `help:"Only imported records"`
	Offset       int    `help:"Records to skip" default:"0"`
	Limit        int    `help:"Records per page (max 100)" default:"20"`
}

// CachedShowCmd shows a cached record
type CachedShowCmd struct {
	ID int64 `arg:"" help:"Record id"`
}

// CachedLinkCmd links a record to a local book
type CachedLinkCmd struct {
	ID          int64 `arg:"" help:"Record id"`
	LocalBookID int64 `arg:"" name:"local-id" help:"Id of the local catalog book"`
}

// CachedDeleteCmd deletes a cached record
type CachedDeleteCmd struct {
	ID int64 `arg:"" help:"Record id"`
}

func (c *CachedListCmd) Run(g *Globals) error {
	filter := store.ListFilter{
		ImportedOnly: c.ImportedOnly,
		Offset:       c.Offset,
		Limit:        c.Limit,
	}
	if c.Source != "" {
		source, err := book.ParseSource(c.Source)
		if err != nil {
			return err
		}
		filter.Source = source
	}

	return withApp(g, func(app *App) error {
		page, err := app.Store.List(g.Context(), filter)
		if err != nil {
			return err
		}
		return writeJSON(g.Out, page)
	})
}

func (c *CachedShowCmd) Run(g *Globals) error {
	return withApp(g, func(app *App) error {
		record, err := app.Store.GetByID(g.Context(), c.ID)
		if err != nil {
			return err
		}
		return writeJSON(g.Out, record)
	})
}

func (c *CachedLinkCmd) Run(g *Globals) error {
	return withApp(g, func(app *App) error {
		if err := app.Store.LinkLocalBook(g.Context(), c.ID, c.LocalBookID); err != nil {
			return err
		}
		record, err := app.Store.GetByID(g.Context(), c.ID)
		if err != nil {
			return err
		}
		return writeJSON(g.Out, record)
	})
}

func (c *CachedDeleteCmd) Run(g *Globals) error {
	return withApp(g, func(app *App) error {
		if err := app.Store.Delete(g.Context(), c.ID); err != nil {
			return err
		}
		return writeJSON(g.Out, map[string]any{"deleted": c.ID})
	})
}
