package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cognify-labs/cognify/backend/pkg/common"
)

// WriteSSE writes one server-sent event frame:
//
//	event: <event>
//	data: <json>
func WriteSSE(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("sse: write %s event: %w", event, err)
	}
	return nil
}

// Received is an event read from a stream, or the error that replaced it.
type Received struct {
	Event common.Event
	Err   error
}

// ReadEvents parses a graph event stream from body. The channel is closed
// when body is exhausted or ctx ends; body is closed when reading stops.
// A frame that cannot be decoded is delivered with Err set and reading
// continues.
func ReadEvents(ctx context.Context, body io.ReadCloser) <-chan Received {
	ch := make(chan Received)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

		var (
			event string
			data  strings.Builder
		)
		flush := func() bool {
			defer func() {
				event = ""
				data.Reset()
			}()
			if data.Len() == 0 {
				return true
			}
			ev, err := DecodeEvent(event, []byte(data.String()))
			select {
			case ch <- Received{Event: ev, Err: err}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Text()
			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(payload)
			}
		}
		flush()
		if err := scanner.Err(); err != nil {
			select {
			case ch <- Received{Err: fmt.Errorf("sse: read: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// DecodeEvent turns an event name and its JSON payload back into an Event.
func DecodeEvent(eventType string, data []byte) (common.Event, error) {
	ev := common.Event{Type: common.EventType(eventType)}
	switch ev.Type {
	case common.EventStatus, common.EventError:
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("sse: decode %s event: %w", eventType, err)
		}
		ev.Message = p.Message
	case common.EventNode:
		var p struct {
			Node *common.GraphNode `json:"node"`
		}
		if err := json.Unmarshal(data, &p); err != nil || p.Node == nil {
			return ev, fmt.Errorf("sse: decode node event: %w", missing(err))
		}
		ev.Node = p.Node
	case common.EventEdge:
		var p struct {
			Edge *common.GraphEdge `json:"edge"`
		}
		if err := json.Unmarshal(data, &p); err != nil || p.Edge == nil {
			return ev, fmt.Errorf("sse: decode edge event: %w", missing(err))
		}
		ev.Edge = p.Edge
	case common.EventComplete:
		var p struct {
			Summary *common.Summary `json:"summary"`
		}
		if err := json.Unmarshal(data, &p); err != nil || p.Summary == nil {
			return ev, fmt.Errorf("sse: decode complete event: %w", missing(err))
		}
		ev.Summary = p.Summary
	default:
		return ev, fmt.Errorf("sse: unknown event type %q", eventType)
	}
	return ev, nil
}

var errMissingPayload = errors.New("payload missing")

func missing(err error) error {
	if err != nil {
		return err
	}
	return errMissingPayload
}
