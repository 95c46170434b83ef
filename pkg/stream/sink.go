package stream

import (
	"github.com/cognify-labs/cognify/backend/pkg/common"
	"github.com/cognify-labs/cognify/backend/pkg/logger"
)

// Sink delivers events to a consumer, usually an SSE response. An error
// means the consumer is gone.
type Sink interface {
	Send(ev common.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ev common.Event) error

func (f SinkFunc) Send(ev common.Event) error {
	return f(ev)
}

// LogSink logs every event. Headless runs (the worker) stream into it.
type LogSink struct {
	GraphID string
}

func (s LogSink) Send(ev common.Event) error {
	switch ev.Type {
	case common.EventStatus:
		logger.Info("[Stream] "+ev.Message, "graph_id", s.GraphID)
	case common.EventError:
		logger.Error("[Stream] Run failed", "graph_id", s.GraphID, "message", ev.Message)
	case common.EventComplete:
		logger.Info("[Stream] Run complete", "graph_id", s.GraphID, "nodes", ev.Summary.Nodes, "edges", ev.Summary.Edges)
	default:
		logger.Debug("[Stream] Event", "graph_id", s.GraphID, "type", ev.Type)
	}
	return nil
}

// detachingSink forwards to a Sink until the first failed send, then drops
// events so the run can finish without its client.
type detachingSink struct {
	sink     Sink
	graphID  string
	detached bool
}

func (s *detachingSink) emit(ev common.Event) {
	if s.detached || s.sink == nil {
		return
	}
	if err := s.sink.Send(ev); err != nil {
		s.detached = true
		logger.Warn("[Stream] Client went away, continuing run without it", "graph_id", s.graphID, "err", err)
	}
}
