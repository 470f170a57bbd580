package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes one record named "channel".
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		m := event.Message
		attrs = append(attrs,
			slog.String("kind", m.Kind.String()),
			slog.Uint64("msg_id", uint64(m.ID)),
		)
		if m.URL != "" {
			attrs = append(attrs, slog.String("url", m.URL))
		}
		if m.Hash != "" {
			attrs = append(attrs, slog.String("hash", m.Hash))
		}
		if m.Method != "" {
			attrs = append(attrs, slog.String("method", m.Method))
		}
		if m.Error != "" {
			attrs = append(attrs, slog.String("remote_error", m.Error))
		}
		if m.Latency != nil {
			attrs = append(attrs, slog.Duration("latency", *m.Latency))
		}
	case event.StateChange != nil:
		s := event.StateChange
		attrs = append(attrs,
			slog.String("entity", s.Entity.String()),
			slog.String("old_state", s.OldState),
			slog.String("new_state", s.NewState),
		)
		if s.URL != "" {
			attrs = append(attrs, slog.String("url", s.URL))
		}
		if s.Reason != "" {
			attrs = append(attrs, slog.String("reason", s.Reason))
		}
	case event.Control != nil:
		attrs = append(attrs, slog.String("control", event.Control.Type.String()))
		if event.Control.CloseCode != nil {
			attrs = append(attrs, slog.Int("close_code", *event.Control.CloseCode))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "channel", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
