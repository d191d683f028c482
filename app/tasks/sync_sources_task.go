package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/feed"
)

var _ TaskInterface = (*SyncSourcesTask)(nil)

// SyncSourcesTask writes the loaded YAML source configs into the registry.
// Registry position follows the order of configs; sources without a config
// file are disabled.
type SyncSourcesTask struct {
	Task
	Configs    []*feed.Config
	sourceRepo database.SourceRepository
}

func NewSyncSourcesTask(configs []*feed.Config, sourceRepo database.SourceRepository) *SyncSourcesTask {
	return &SyncSourcesTask{
		Task:       NewTask(TaskTypeSyncSources, "registry"),
		Configs:    configs,
		sourceRepo: sourceRepo,
	}
}

func (t *SyncSourcesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	names := make([]string, 0, len(t.Configs))
	for i, config := range t.Configs {
		err := t.sourceRepo.UpsertSource(ctx, config.Name, config.URL, config.IsEnabled(), i)
		if err != nil {
			slog.Error("Task failed", "type", string(t.Type), "source", config.Name, "error", err)
			return fmt.Errorf("failed to sync source %s to registry: %w", config.Name, err)
		}
		names = append(names, config.Name)
	}

	disabled, err := t.sourceRepo.DisableSourcesExcept(ctx, names)
	if err != nil {
		slog.Error("Task failed", "type", string(t.Type), "error", err)
		return fmt.Errorf("failed to disable removed sources: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"sources", len(t.Configs),
		"disabled", disabled,
		"duration", t.GetDuration())

	return nil
}
