// Package endpoint implements the typed Reader and Writer façades the
// application sees. They sit directly on the sample cache: writing inserts
// cache changes, reading projects them through the reader's sample-state
// view. The byte-level codec is a collaborator supplied through the
// Serializer and Deserializer interfaces.
package endpoint

import (
	"errors"

	"github.com/tarium/godds/pkg/rtps"
)

// Serializer turns application values into opaque payload bytes plus the
// serialized instance key. Implementations encode CDR (or, for tests and
// demos, any self-describing format) without the core caring which.
type Serializer interface {
	// Serialize encodes a value, returning payload bytes and the
	// serialized key. The key is empty on NoKey topics.
	Serialize(value interface{}) (payload, key []byte, err error)
	// SerializeKey encodes just an instance key, for dispose and
	// unregister announcements.
	SerializeKey(key interface{}) ([]byte, error)
	// Representation tags the produced bytes on the wire.
	Representation() rtps.RepresentationIdentifier
}

// Deserializer is the inbound counterpart of Serializer.
type Deserializer interface {
	Deserialize(rep rtps.RepresentationIdentifier, payload []byte) (interface{}, error)
	DeserializeKey(rep rtps.RepresentationIdentifier, key []byte) (interface{}, error)
}

// Error categories shared by the façades. Callers match with errors.Is.
var (
	// ErrPreconditionNotMet flags an operation inconsistent with current
	// state, such as writing to a closed writer.
	ErrPreconditionNotMet = errors.New("precondition not met")
	// ErrOutOfResources flags a resource-limit breach.
	ErrOutOfResources = errors.New("out of resources")
	// ErrTimeout flags a reliable write that exceeded its max blocking
	// time.
	ErrTimeout = errors.New("timed out")
)
