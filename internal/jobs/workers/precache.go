package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ruteravelar/filavoz/internal/announce"
	"github.com/ruteravelar/filavoz/internal/jobs"
)

// PrecacheWorker runs catalogue warm-up off the request path.
type PrecacheWorker struct {
	precacher *announce.Precacher
}

func NewPrecacheWorker(precacher *announce.Precacher) *PrecacheWorker {
	return &PrecacheWorker{precacher: precacher}
}

func (w *PrecacheWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload jobs.PrecachePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal precache payload: %w", err)
	}

	report, err := w.precacher.Run(ctx, payload.Force)
	if err != nil {
		return fmt.Errorf("precache run: %w", err)
	}

	slog.Info("precache task done",
		"skipped", report.Skipped,
		"synthesized", report.Synthesized,
		"failed", report.Failed,
		"marked", report.Marked,
	)
	return nil
}
