package console

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/AnishMulay/vtfs/internal/log_service"
	"github.com/lmittmann/tint"
)

// ConsoleLogService renders events through slog with a tint handler, for
// foreground runs where a per-node log file is inconvenient.
type ConsoleLogService struct {
	nodeID string
	logger *slog.Logger
}

func NewConsoleLogService(w io.Writer, nodeID string, minLogLevel string, noColor bool) *ConsoleLogService {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      toSlogLevel(minLogLevel),
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	})

	return &ConsoleLogService{
		nodeID: nodeID,
		logger: slog.New(handler).With("node", nodeID),
	}
}

func toSlogLevel(level string) slog.Level {
	switch log_service.GetLevelValue(level) {
	case log_service.DebugLevelValue:
		return slog.LevelDebug
	case log_service.WarnLevelValue:
		return slog.LevelWarn
	case log_service.ErrorLevelValue:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (cs *ConsoleLogService) log(level slog.Level, event log_service.LogEvent) {
	attrs := make([]slog.Attr, 0, len(event.Metadata))
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.Any(k, v))
	}
	cs.logger.LogAttrs(context.Background(), level, event.Message, attrs...)
}

func (cs *ConsoleLogService) Debug(event log_service.LogEvent) {
	cs.log(slog.LevelDebug, event)
}

func (cs *ConsoleLogService) Info(event log_service.LogEvent) {
	cs.log(slog.LevelInfo, event)
}

func (cs *ConsoleLogService) Warn(event log_service.LogEvent) {
	cs.log(slog.LevelWarn, event)
}

func (cs *ConsoleLogService) Error(event log_service.LogEvent) {
	cs.log(slog.LevelError, event)
}

var _ log_service.LogService = (*ConsoleLogService)(nil)
