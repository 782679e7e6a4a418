package tokenward

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/wardenlabs/tokenward/breach"
)

// AlertSink receives SecurityAlert values from the engine's dispatcher.
// The interface lives in the breach package so the detector can emit
// without importing the root; this alias is the public name.
type AlertSink = breach.AlertSink

// NoOpSink is an AlertSink that silently discards all alerts.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, SecurityAlert) {}

// ChannelSink is a buffered channel-based AlertSink.
type ChannelSink struct {
	alerts chan SecurityAlert
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		alerts: make(chan SecurityAlert, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, alert SecurityAlert) {
	select {
	case s.alerts <- alert:
	case <-ctx.Done():
	}
}

// Alerts returns the receive side of the sink.
func (s *ChannelSink) Alerts() <-chan SecurityAlert {
	return s.alerts
}

// JSONWriterSink writes one JSON-encoded alert per line to an io.Writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, alert SecurityAlert) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
