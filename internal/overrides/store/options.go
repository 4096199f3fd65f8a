package store

import (
	"context"
	"log/slog"
)

type settings struct {
	slot   string
	logger *slog.Logger
}

// Option configures any of the snapshot stores.
type Option func(*settings)

// WithSlot overrides DefaultSlot.
func WithSlot(slot string) Option {
	return func(s *settings) {
		if slot != "" {
			s.slot = slot
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func newSettings(opts []Option) settings {
	s := settings{slot: DefaultSlot}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// recoverCorrupt logs a decode failure; the caller returns the empty snapshot.
func (s settings) recoverCorrupt(ctx context.Context, backend string, err error) {
	s.logger.WarnContext(ctx, "stored snapshot is corrupt, using empty snapshot",
		"slot", s.slot,
		"backend", backend,
		"error", err,
	)
}
