package helpers

import (
	"context"

	"kbmcp/internal/adapter"
	"kbmcp/internal/logging"
	"kbmcp/internal/usage"
)

// Asker answers one question. *adapter.Assistant satisfies it.
type Asker interface {
	Ask(ctx context.Context, query string) (adapter.Answer, error)
}

// UIContext carries what a UI model needs from its creator.
type UIContext struct {
	Width  int
	Height int
	// Ctx is cancelled when the UI quits, aborting in-flight questions.
	Ctx      context.Context
	Asker    Asker
	Tracker  *usage.Tracker
	Provider string
	Logger   *logging.AppLogger
}

// NewUIContext creates a new UI context with the provided parameters.
func NewUIContext(width, height int, asker Asker, tracker *usage.Tracker, logger *logging.AppLogger) UIContext {
	return UIContext{
		Width:   width,
		Height:  height,
		Ctx:     context.Background(),
		Asker:   asker,
		Tracker: tracker,
		Logger:  logger,
	}
}

// HasValidDimensions checks if the context has valid window dimensions
func (ctx UIContext) HasValidDimensions() bool {
	return ctx.Width > 0 && ctx.Height > 0
}
