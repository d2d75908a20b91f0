package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// heartbeatInterval keeps idle event streams open through proxies
const heartbeatInterval = 15 * time.Second

// eventStream writes Server-Sent Events for one compile session
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// newEventStream sets the streaming headers and sends the status line
func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventStream{w: w, flusher: flusher}, nil
}

// send writes one numbered event with a JSON payload
func (s *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// heartbeat writes a comment line that clients ignore
func (s *eventStream) heartbeat() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) status(resp sessionResponse) error {
	return s.send("status", resp)
}

func (s *eventStream) complete(resp sessionResponse) error {
	return s.send("complete", resp)
}

func (s *eventStream) fail(message string) error {
	return s.send("error", map[string]string{"error": message})
}
