package cli

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/cognify-labs/cognify/backend/pkg/common"
)

// jsonLine is one event as written by extract and replay.
type jsonLine struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// jsonlSink writes every event as a JSON line.
type jsonlSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONLSink(w io.Writer) *jsonlSink {
	return &jsonlSink{enc: json.NewEncoder(w)}
}

func (s *jsonlSink) Send(ev common.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(jsonLine{Event: string(ev.Type), Data: ev.Payload()})
}
