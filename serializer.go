package eventstore

// Serializer turns an ordered event sequence into a storable body and back.
// Deserialize(Serialize(events)) must be a faithful round trip for any
// event sequence the store persists, including order.
type Serializer interface {
	Serialize(events []any) ([]byte, error)
	Deserialize(body []byte) ([]any, error)
}
