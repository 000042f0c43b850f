package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/importer"
	"github.com/Monsterkot/diplom/internal/tui"
)

var selectBook = tui.Select

// SearchCmd searches the catalogs concurrently
type SearchCmd struct {
	Query       string   `arg:"" help:"Search text"`
	Source      []string `short:"s" help:"Catalogs to search (default: all)"`
	Limit       int      `short:"n" help:"Maximum results per catalog (1-40)" default:"10"`
	Page        string   `help:"Page token from a previous search's next_page_token"`
	Language    string   `help:"Restrict results to an ISO-639-1 language where the catalog supports it"`
	Interactive bool     `short:"i" help:"Pick a result in a terminal UI and import it"`
	Actor       string   `help:"Actor recorded on an interactive import"`
}

type searchItem struct {
	book.Result
	RecordID   *int64 `json:"record_id,omitempty"`
	IsImported bool   `json:"is_imported"`
}

type sourceResults struct {
	Source        book.Source  `json:"source"`
	TotalItems    int          `json:"total_items"`
	ElapsedMs     int64        `json:"elapsed_ms"`
	NextPageToken string       `json:"next_page_token,omitempty"`
	Items         []searchItem `json:"items"`
}

type searchOutput struct {
	Query   string          `json:"query"`
	Results []sourceResults `json:"results"`
}

func (c *SearchCmd) Run(g *Globals) error {
	sources := make([]book.Source, 0, len(c.Source))
	seen := make(map[book.Source]bool, len(c.Source))
	for _, value := range c.Source {
		source, err := book.ParseSource(value)
		if err != nil {
			return err
		}
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}

	return withApp(g, func(app *App) error {
		ctx := g.Context()
		if len(sources) == 0 {
			sources = app.Registry.Sources()
		}

		results, err := app.Aggregator.Search(ctx, book.Query{
			Text:       c.Query,
			MaxResults: c.Limit,
			PageToken:  c.Page,
			Language:   c.Language,
		}, sources...)
		if err != nil {
			return err
		}

		output := searchOutput{Query: c.Query, Results: []sourceResults{}}
		var all []book.Result
		for _, source := range sources {
			result, ok := results[source]
			if !ok {
				continue
			}
			annotated, err := annotate(ctx, app, result)
			if err != nil {
				return err
			}
			output.Results = append(output.Results, annotated)
			all = append(all, result.Items...)
		}

		if !c.Interactive {
			return writeJSON(g.Out, output)
		}
		return c.pick(ctx, g, app, all, output)
	})
}

// annotate marks each item with its cached import state.
func annotate(ctx context.Context, app *App, result book.SearchResult) (sourceResults, error) {
	ids := make([]string, len(result.Items))
	for i, item := range result.Items {
		ids[i] = item.ExternalID
	}
	states, err := app.Store.ImportStates(ctx, result.Source, ids)
	if err != nil {
		return sourceResults{}, err
	}

	out := sourceResults{
		Source:        result.Source,
		TotalItems:    result.TotalItems,
		ElapsedMs:     result.ElapsedMs,
		NextPageToken: result.NextPageToken,
		Items:         make([]searchItem, len(result.Items)),
	}
	for i, item := range result.Items {
		out.Items[i] = searchItem{Result: item}
		if state, ok := states[item.ExternalID]; ok {
			id := state.ID
			out.Items[i].RecordID = &id
			out.Items[i].IsImported = state.IsImported
		}
	}
	return out, nil
}

func (c *SearchCmd) pick(ctx context.Context, g *Globals, app *App, results []book.Result, output searchOutput) error {
	selection, err := selectBook(c.Query, results)
	if err != nil {
		return fmt.Errorf("interactive selection failed: %w", err)
	}

	switch selection.Action {
	case tui.ActionSelected:
		chosen := selection.Selection
		slog.Info("Importing selected book", "key", chosen.Key().String(), "title", chosen.Title)
		outcome, err := app.Importer.ImportOne(ctx, importer.Request{
			Source:     chosen.Source,
			ExternalID: chosen.ExternalID,
		}, c.Actor)
		if err != nil {
			return err
		}
		return writeJSON(g.Out, outcome)
	case tui.ActionStopped:
		return errors.NewStopProcessingError("search stopped by user")
	default:
		return writeJSON(g.Out, output)
	}
}
