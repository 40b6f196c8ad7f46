package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

// DecodeFunc turns an envelope's data section into whatever a consumer
// needs from it.
type DecodeFunc[T any] func(data json.RawMessage) (T, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders maps (event type, envelope version) to a projection into T.
// Each consumer keeps its own instance; the reaper, for example, projects
// every event it cares about down to a list of object paths.
type Decoders[T any] struct {
	mu    sync.RWMutex
	funcs map[decoderKey]DecodeFunc[T]
}

func NewDecoders[T any]() *Decoders[T] {
	return &Decoders[T]{funcs: make(map[decoderKey]DecodeFunc[T])}
}

func (d *Decoders[T]) Register(eventType enums.OutboxEventType, version int, fn DecodeFunc[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.funcs[decoderKey{eventType: eventType, version: version}] = fn
}

// Handles reports whether any version of eventType is registered.
func (d *Decoders[T]) Handles(eventType enums.OutboxEventType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for key := range d.funcs {
		if key.eventType == eventType {
			return true
		}
	}
	return false
}

func (d *Decoders[T]) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (T, error) {
	d.mu.RLock()
	fn, ok := d.funcs[decoderKey{eventType: eventType, version: version}]
	d.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return fn(data)
}

// JSON unmarshals into the payload struct P and projects it with fn.
func JSON[P, T any](fn func(P) T) DecodeFunc[T] {
	return func(data json.RawMessage) (T, error) {
		var payload P
		if err := json.Unmarshal(data, &payload); err != nil {
			var zero T
			return zero, fmt.Errorf("decode %T: %w", payload, err)
		}
		return fn(payload), nil
	}
}
