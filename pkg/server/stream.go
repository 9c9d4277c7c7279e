package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// sseWriter frames a streaming completion as text/event-stream: each
// non-terminal frame is `data: {json}\n\n`, the terminal frame is the
// literal `data: [DONE]\n\n` (spec §4.7 "Streaming contract"). flush is
// called after every write so a client sees chunks as they arrive rather
// than buffered until the handler returns.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      string
	model   string
	created int64
}

func newSSEWriter(w http.ResponseWriter, id, model string, created int64) *sseWriter {
	flusher, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: flusher, id: id, model: model, created: created}
}

func (s *sseWriter) writeSources(sources []plugins.Source) error {
	if len(sources) == 0 {
		return nil
	}
	return s.writeFrame(sourcesFrame{Sources: sources})
}

func (s *sseWriter) writeChunk(delta string, finished bool) error {
	var finishReason *string
	if finished {
		r := "stop"
		finishReason = &r
	}
	chunk := streamChunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []streamChoice{{Index: 0, Delta: deltaMessage{Content: delta}, FinishReason: finishReason}},
	}
	return s.writeFrame(chunk)
}

func (s *sseWriter) writeDone() error {
	_, err := fmt.Fprint(s.w, "data: [DONE]\n\n")
	s.flush()
	return err
}

func (s *sseWriter) writeFrame(v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", bytes.TrimRight(buf.Bytes(), "\n")); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
