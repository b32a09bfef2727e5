package codec

import "google.golang.org/protobuf/proto"

// Protobuf encodes proto messages. Marshalling is deterministic so that
// map fields do not reorder between writes of the same item.
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

// NewProtobuf takes a constructor for an empty message, e.g.
// func() *pb.Flag { return new(pb.Flag) }.
func NewProtobuf[T proto.Message](newMsg func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: newMsg}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.newMsg()
	err := proto.Unmarshal(b, m)
	return m, err
}
