package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Monsterkot/diplom/internal/importer"
	"github.com/Monsterkot/diplom/internal/tasks"
)

var (
	progressOut  io.Writer = os.Stderr
	pollInterval           = 200 * time.Millisecond
)

// BulkCmd imports every item of a manifest file
type BulkCmd struct {
	File       string `short:"f" help:"Manifest file (YAML or JSON) listing the books to import" required:"" type:"existingfile"`
	Actor      string `help:"Actor recorded as the importer (overrides the manifest's actor)"`
	Async      bool   `help:"Run the batch as a background task regardless of its size"`
	NoProgress bool   `help:"Do not draw a progress bar"`
}

func (c *BulkCmd) Run(g *Globals) error {
	manifest, err := importer.LoadManifest(c.File)
	if err != nil {
		return err
	}
	actor := c.Actor
	if actor == "" {
		actor = manifest.Actor
	}

	return withApp(g, func(app *App) error {
		ctx := g.Context()
		bar := c.newBar(len(manifest.Items))

		var result importer.RunResult
		if c.Async {
			id, err := app.Bulk.Submit(manifest.Items, actor)
			if err != nil {
				return err
			}
			result.TaskID = id
		} else {
			result, err = app.Bulk.Run(ctx, manifest.Items, actor, func(p tasks.Progress) {
				if bar != nil {
					_ = bar.Set(p.Current)
				}
			})
			if err != nil {
				return err
			}
		}

		if result.Report != nil {
			finishBar(bar)
			return writeJSON(g.Out, result.Report)
		}

		status, err := waitForTask(ctx, app.Queue, result.TaskID, bar)
		finishBar(bar)
		if err != nil {
			return err
		}
		return writeJSON(g.Out, status)
	})
}

func (c *BulkCmd) newBar(total int) *progressbar.ProgressBar {
	if c.NoProgress {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}

// waitForTask polls a queued task until it is terminal, mirroring its progress on bar.
func waitForTask(ctx context.Context, queue *tasks.Queue, id string, bar *progressbar.ProgressBar) (tasks.Status, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := queue.Status(ctx, id)
		if err != nil {
			return tasks.Status{}, err
		}
		if bar != nil {
			_ = bar.Set(status.Progress.Current)
		}
		if status.State.Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
