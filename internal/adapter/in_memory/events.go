package in_memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/port"
)

var _ port.EventSink = (*RecordingSink)(nil)
var _ port.EventSink = (*LogSink)(nil)

// RecordingSink keeps every published event; used by tests to assert on the
// notification stream.
type RecordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Publish(ctx context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *RecordingSink) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByName filters the recorded stream by event name.
func (s *RecordingSink) ByName(name string) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, ev := range s.events {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}
	return out
}

// LogSink writes events to the structured log, the default sink when no
// message broker is wired.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, ev domain.Event) error {
	s.logger.Info("event", zap.String("name", ev.EventName()), zap.Any("payload", ev))
	return nil
}
