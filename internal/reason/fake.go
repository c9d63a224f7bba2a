package reason

import (
	"context"
	"encoding/json"
	"sync"
)

// Fake is a deterministic in-memory Reasoner for tests. It replays canned
// responses in order, repeating the last one once exhausted.
type Fake struct {
	// Unavailable makes IsAvailable report false.
	Unavailable bool
	// Err, when set, is returned from every GenerateStructured call.
	Err error
	// Responses are returned verbatim, one per call.
	Responses []json.RawMessage

	mu    sync.Mutex
	calls int
}

// IsAvailable implements Reasoner.
func (f *Fake) IsAvailable() bool { return f != nil && !f.Unavailable }

// GenerateStructured implements Reasoner.
func (f *Fake) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaHint string, temperature float32) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.Unavailable {
		return nil, ErrUnavailable
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Responses) == 0 {
		return json.RawMessage(`{}`), nil
	}
	idx := f.calls - 1
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	return f.Responses[idx], nil
}

// Calls reports how many GenerateStructured calls were made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
