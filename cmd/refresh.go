package cmd

import (
	"time"

	"github.com/Monsterkot/diplom/internal/scheduler"
	"github.com/Monsterkot/diplom/internal/tasks"
)

// RefreshCmd runs one staleness pass and waits for its refresh tasks
type RefreshCmd struct {
	MaxAge    time.Duration `help:"Records last fetched longer ago than this are stale (default: staleness.max_age)"`
	BatchSize int           `help:"Maximum records to refresh (default: staleness.batch_size)"`
}

type refreshOutput struct {
	scheduler.TickReport
	Tasks []tasks.Status `json:"tasks"`
}

func (c *RefreshCmd) Run(g *Globals) error {
	return withApp(g, func(app *App) error {
		ctx := g.Context()
		s := scheduler.New(app.Store, app.Refresher, app.Queue,
			scheduler.WithMaxAge(app.Config.Staleness.MaxAge),
			scheduler.WithBatchSize(app.Config.Staleness.BatchSize),
			scheduler.WithMaxAge(c.MaxAge),
			scheduler.WithBatchSize(c.BatchSize),
		)

		report, err := s.Tick(ctx)
		if err != nil {
			return err
		}

		output := refreshOutput{TickReport: report, Tasks: make([]tasks.Status, 0, len(report.Handles))}
		for _, handle := range report.Handles {
			status, err := app.Queue.Wait(ctx, handle)
			if err != nil {
				return err
			}
			output.Tasks = append(output.Tasks, status)
		}
		return writeJSON(g.Out, output)
	})
}
