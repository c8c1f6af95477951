package cache

import (
	"github.com/tarium/godds/pkg/rtps"
)

// ChangeKind states what a CacheChange announces about its instance.
type ChangeKind int

const (
	Alive ChangeKind = iota
	NotAliveDisposed
	NotAliveUnregistered
)

func (k ChangeKind) String() string {
	switch k {
	case NotAliveDisposed:
		return "NOT_ALIVE_DISPOSED"
	case NotAliveUnregistered:
		return "NOT_ALIVE_UNREGISTERED"
	default:
		return "ALIVE"
	}
}

// PayloadKind tags which payload variant a change carries. Alive changes
// carry Data; dispose and unregister changes carry KeyOnly or Empty.
type PayloadKind int

const (
	PayloadEmpty PayloadKind = iota
	PayloadData
	PayloadKeyOnly
)

// Payload is an opaque serialized value or key, tagged with its wire
// representation. The core never inspects the bytes.
type Payload struct {
	Kind           PayloadKind
	Representation rtps.RepresentationIdentifier
	Bytes          []byte
}

// DataPayload wraps serialized sample bytes.
func DataPayload(rep rtps.RepresentationIdentifier, b []byte) Payload {
	return Payload{Kind: PayloadData, Representation: rep, Bytes: b}
}

// KeyPayload wraps serialized key bytes for dispose/unregister changes.
func KeyPayload(rep rtps.RepresentationIdentifier, b []byte) Payload {
	return Payload{Kind: PayloadKeyOnly, Representation: rep, Bytes: b}
}

// CacheChange is one produced sample, or the announcement of an instance
// state change when Kind is not Alive.
type CacheChange struct {
	Kind            ChangeKind
	WriterGUID      rtps.GUID
	SequenceNumber  rtps.SequenceNumber
	SourceTimestamp rtps.Timestamp
	// Key is the serialized instance key. Empty on NoKey topics.
	Key     []byte
	Payload Payload
}

// NewAliveChange builds an ALIVE change carrying data.
func NewAliveChange(writer rtps.GUID, seq rtps.SequenceNumber, source rtps.Timestamp, key []byte, payload Payload) CacheChange {
	return CacheChange{
		Kind:            Alive,
		WriterGUID:      writer,
		SequenceNumber:  seq,
		SourceTimestamp: source,
		Key:             key,
		Payload:         payload,
	}
}

// NewDisposeChange builds a NOT_ALIVE_DISPOSED change carrying only a key.
func NewDisposeChange(writer rtps.GUID, seq rtps.SequenceNumber, source rtps.Timestamp, key []byte, payload Payload) CacheChange {
	return CacheChange{
		Kind:            NotAliveDisposed,
		WriterGUID:      writer,
		SequenceNumber:  seq,
		SourceTimestamp: source,
		Key:             key,
		Payload:         payload,
	}
}
