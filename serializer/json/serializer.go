// Package json provides an eventstore.Serializer that stores event
// sequences as JSON, using a named-type registry to rebuild concrete
// payload types on deserialization.
package json

import (
	stdjson "encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/terraskye/eventstore"
)

var _ eventstore.Serializer = (*Serializer)(nil)

// Serializer encodes an ordered event sequence as a JSON array of
// type-tagged records. Event types must be registered under a stable name
// before they pass through Serialize or Deserialize; the order of the
// sequence is always preserved.
type Serializer struct {
	mu     sync.RWMutex
	decode map[string]func([]byte) (any, error)
	names  map[reflect.Type]string
}

// New creates an empty Serializer. Register event types before use.
func New() *Serializer {
	return &Serializer{
		decode: make(map[string]func([]byte) (any, error)),
		names:  make(map[reflect.Type]string),
	}
}

// Register registers the event type T under name.
//
// Panics when the name or type is already registered; registration is an
// init-time concern.
func Register[T any](s *Serializer, name string) {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decode[name]; exists {
		panic(fmt.Sprintf("event name already registered: %s", name))
	}
	if _, exists := s.names[typ]; exists {
		panic(fmt.Sprintf("event type already registered: %s", typ))
	}
	s.decode[name] = func(data []byte) (any, error) {
		value := new(T)
		if err := stdjson.Unmarshal(data, value); err != nil {
			return nil, err
		}
		return *value, nil
	}
	s.names[typ] = name
}

type record struct {
	Type string             `json:"type"`
	Data stdjson.RawMessage `json:"data"`
}

// Serialize implements eventstore.Serializer.
func (s *Serializer) Serialize(events []any) ([]byte, error) {
	records := make([]record, 0, len(events))
	for i, event := range events {
		name, err := s.nameFor(event)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		data, err := stdjson.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, name, err)
		}
		records = append(records, record{Type: name, Data: data})
	}
	return stdjson.Marshal(records)
}

// Deserialize implements eventstore.Serializer.
func (s *Serializer) Deserialize(body []byte) ([]any, error) {
	var records []record
	if err := stdjson.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	events := make([]any, 0, len(records))
	for i, rec := range records {
		decode, err := s.decoderFor(rec.Type)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		event, err := decode(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, rec.Type, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Serializer) nameFor(event any) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.names[reflect.TypeOf(event)]
	if !ok {
		return "", fmt.Errorf("event type not registered: %T", event)
	}
	return name, nil
}

func (s *Serializer) decoderFor(name string) (func([]byte) (any, error), error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	decode, ok := s.decode[name]
	if !ok {
		return nil, fmt.Errorf("event name not registered: %s", name)
	}
	return decode, nil
}
