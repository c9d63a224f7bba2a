// Package reason defines the external reasoning capability the planning
// engine consumes. The engine depends only on this interface being present or
// absent; it never depends on which provider backs it. Every call site must
// go through the resilience policy, never straight to a Reasoner.
package reason

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnavailable indicates no reasoner capability is configured.
var ErrUnavailable = errors.New("reason: reasoner capability unavailable")

// Reasoner produces structured (JSON) answers to planning prompts.
type Reasoner interface {
	// IsAvailable reports whether the capability can be called at all.
	IsAvailable() bool

	// GenerateStructured asks for a single JSON object shaped per schemaHint,
	// a prose description of the expected fields. The raw message is decoded
	// by the caller via Decode, which surfaces shape problems as data.
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaHint string, temperature float32) (json.RawMessage, error)
}

// Decoded is the tagged result of decoding a structured reasoner response:
// either the parsed value, or the validation errors explaining why the
// payload was unusable. Callers branch on Ok instead of catching panics.
type Decoded[T any] struct {
	Value  T
	Errors []string
}

// Ok reports whether decoding and validation succeeded.
func (d Decoded[T]) Ok() bool { return len(d.Errors) == 0 }

// Invalid appends a validation error discovered after decoding (for example
// an out-of-range score) and returns the updated result.
func (d Decoded[T]) Invalid(format string, args ...any) Decoded[T] {
	d.Errors = append(d.Errors, fmt.Sprintf(format, args...))
	return d
}

// Decode parses a raw structured response into T. Malformed payloads come
// back as ValidationFailed-style data, never as an error or panic.
func Decode[T any](raw json.RawMessage) Decoded[T] {
	var value T
	if len(raw) == 0 {
		return Decoded[T]{Errors: []string{"empty response payload"}}
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return Decoded[T]{Errors: []string{fmt.Sprintf("decode response: %v", err)}}
	}
	return Decoded[T]{Value: value}
}
