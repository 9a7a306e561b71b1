package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/activitysync/internal/ir"
)

// RecordedRequest is one POST captured by RecordingClient.
type RecordedRequest struct {
	URL  string
	Body json.RawMessage
}

// Snapshot decodes the request body as a poll snapshot.
func (r RecordedRequest) Snapshot() ([]ir.ElementSnapshot, error) {
	var snap []ir.ElementSnapshot
	if err := json.Unmarshal(r.Body, &snap); err != nil {
		return nil, fmt.Errorf("decode recorded body: %w", err)
	}
	return snap, nil
}

// Responder builds the response for one request. Returning an error fails
// the request.
type Responder func(req RecordedRequest) (any, error)

// RecordingClient captures PostJSON calls in order and answers them from a
// Responder. The default responder answers [].
//
// Thread-safety: All methods are safe for concurrent use.
type RecordingClient struct {
	mu        sync.Mutex
	requests  []RecordedRequest
	responder Responder
}

// NewRecordingClient creates a client answering every request with [].
func NewRecordingClient() *RecordingClient {
	return &RecordingClient{
		responder: func(RecordedRequest) (any, error) { return []ir.ElementActivity{}, nil },
	}
}

// RespondWith replaces the responder.
func (c *RecordingClient) RespondWith(r Responder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responder = r
}

// PostJSON records the request and decodes the responder's value into out.
func (c *RecordingClient) PostJSON(_ context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req := RecordedRequest{URL: url, Body: data}

	c.mu.Lock()
	c.requests = append(c.requests, req)
	responder := c.responder
	c.mu.Unlock()

	resp, err := responder(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	encoded, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return json.Unmarshal(encoded, out)
}

// Requests returns a copy of every recorded request.
func (c *RecordingClient) Requests() []RecordedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RecordedRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Bodies returns each recorded body as a string.
func (c *RecordingClient) Bodies() []string {
	reqs := c.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = string(r.Body)
	}
	return out
}

// Count returns the number of recorded requests.
func (c *RecordingClient) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Reset forgets recorded requests.
func (c *RecordingClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = nil
}
