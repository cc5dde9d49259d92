package main

import (
	"log/slog"

	"github.com/netlab-dev/azure-topology/pkg/status"
)

// statusLogHandler returns a status.Handler that logs updates using slog
func statusLogHandler() status.Handler {
	return func(update status.Update) {
		attrs := []any{
			"message", update.Message,
		}

		if update.Kind != "" {
			attrs = append(attrs, "kind", update.Kind)
		}
		if update.Name != "" {
			attrs = append(attrs, "name", update.Name)
		}
		if update.ID != "" {
			attrs = append(attrs, "id", update.ID)
		}
		if update.Action != "" {
			attrs = append(attrs, "action", update.Action)
		}

		for key, value := range update.Metadata {
			attrs = append(attrs, key, value)
		}

		switch update.Level {
		case status.LevelProgress:
			// Per-resource noise; only visible with --verbose.
			slog.Debug("Progress", attrs...)
		case status.LevelSuccess:
			slog.Info("Success", attrs...)
		case status.LevelWarning:
			slog.Warn("Warning", attrs...)
		case status.LevelError:
			slog.Error("Error", attrs...)
		default:
			slog.Info("Status", attrs...)
		}
	}
}
