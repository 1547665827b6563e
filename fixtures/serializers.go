package fixtures

import (
	"encoding/json"
	"errors"

	es "github.com/terraskye/eventstore"
)

// ErrSerializerBroken is the error injected by FailingSerializer.
var ErrSerializerBroken = errors.New("serializer broken")

var (
	_ es.Serializer = StringSerializer{}
	_ es.Serializer = FailingSerializer{}
)

// StringSerializer is a Serializer for tests whose event payloads are
// plain strings. It round-trips faithfully through a JSON string array.
type StringSerializer struct{}

func (StringSerializer) Serialize(events []any) ([]byte, error) {
	strs := make([]string, len(events))
	for i, event := range events {
		s, ok := event.(string)
		if !ok {
			return nil, errors.New("string serializer: event is not a string")
		}
		strs[i] = s
	}
	return json.Marshal(strs)
}

func (StringSerializer) Deserialize(body []byte) ([]any, error) {
	var strs []string
	if err := json.Unmarshal(body, &strs); err != nil {
		return nil, err
	}
	events := make([]any, len(strs))
	for i, s := range strs {
		events[i] = s
	}
	return events, nil
}

// FailingSerializer fails every operation with ErrSerializerBroken.
type FailingSerializer struct{}

func (FailingSerializer) Serialize([]any) ([]byte, error) {
	return nil, ErrSerializerBroken
}

func (FailingSerializer) Deserialize([]byte) ([]any, error) {
	return nil, ErrSerializerBroken
}
