package rtps

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// VendorID identifies the middleware implementation on the wire.
type VendorID [2]byte

// VendorUnknown is the reserved "not set" vendor id.
var VendorUnknown = VendorID{0x00, 0x00}

// GUIDPrefix identifies a participant. All endpoints created by one
// participant share its prefix.
type GUIDPrefix [12]byte

// GUIDPrefixUnknown is the all-zero prefix.
var GUIDPrefixUnknown = GUIDPrefix{}

// NewGUIDPrefix generates a fresh prefix: vendor id followed by random
// bytes, unique per participant per network with overwhelming probability.
func NewGUIDPrefix(vendor VendorID) GUIDPrefix {
	var p GUIDPrefix
	p[0] = vendor[0]
	p[1] = vendor[1]
	if _, err := rand.Read(p[2:]); err != nil {
		panic(fmt.Sprintf("guid prefix generation failed: %s", err))
	}
	return p
}

func (p GUIDPrefix) String() string {
	return hex.EncodeToString(p[:])
}

// Compare orders prefixes byte-wise.
func (p GUIDPrefix) Compare(o GUIDPrefix) int {
	return bytes.Compare(p[:], o[:])
}

// EntityID identifies an endpoint within a participant. The last byte is
// the entity kind.
type EntityID [4]byte

// Well-known entity ids, RTPS 2.3 table 9.1.
var (
	EntityUnknown     = EntityID{0x00, 0x00, 0x00, 0x00}
	EntityParticipant = EntityID{0x00, 0x00, 0x01, 0xc1}

	EntitySPDPParticipantWriter = EntityID{0x00, 0x01, 0x00, 0xc2}
	EntitySPDPParticipantReader = EntityID{0x00, 0x01, 0x00, 0xc7}

	EntitySEDPTopicWriter = EntityID{0x00, 0x00, 0x02, 0xc2}
	EntitySEDPTopicReader = EntityID{0x00, 0x00, 0x02, 0xc7}

	EntitySEDPPublicationsWriter = EntityID{0x00, 0x00, 0x03, 0xc2}
	EntitySEDPPublicationsReader = EntityID{0x00, 0x00, 0x03, 0xc7}

	EntitySEDPSubscriptionsWriter = EntityID{0x00, 0x00, 0x04, 0xc2}
	EntitySEDPSubscriptionsReader = EntityID{0x00, 0x00, 0x04, 0xc7}

	EntityP2PParticipantMessageWriter = EntityID{0x00, 0x02, 0x00, 0xc2}
	EntityP2PParticipantMessageReader = EntityID{0x00, 0x02, 0x00, 0xc7}
)

// Entity kind bits, RTPS 2.3 table 9.2.
const (
	kindUserWriterWithKey = 0x02
	kindUserWriterNoKey   = 0x03
	kindUserReaderWithKey = 0x07
	kindUserReaderNoKey   = 0x04
)

// NewUserWriterEntityID builds a user-defined writer entity id from a
// participant-unique 3-byte key.
func NewUserWriterEntityID(key [3]byte, withKey bool) EntityID {
	kind := byte(kindUserWriterNoKey)
	if withKey {
		kind = kindUserWriterWithKey
	}
	return EntityID{key[0], key[1], key[2], kind}
}

// NewUserReaderEntityID builds a user-defined reader entity id.
func NewUserReaderEntityID(key [3]byte, withKey bool) EntityID {
	kind := byte(kindUserReaderNoKey)
	if withKey {
		kind = kindUserReaderWithKey
	}
	return EntityID{key[0], key[1], key[2], kind}
}

func (e EntityID) String() string {
	return hex.EncodeToString(e[:])
}

// IsBuiltinReader reports whether e is one of the five built-in discovery
// reader ids. Discovery must never advertise these as user endpoints.
func (e EntityID) IsBuiltinReader() bool {
	switch e {
	case EntitySPDPParticipantReader,
		EntitySEDPSubscriptionsReader,
		EntitySEDPPublicationsReader,
		EntitySEDPTopicReader,
		EntityP2PParticipantMessageReader:
		return true
	}
	return false
}

// IsBuiltinWriter is the writer-side counterpart of IsBuiltinReader.
func (e EntityID) IsBuiltinWriter() bool {
	switch e {
	case EntitySPDPParticipantWriter,
		EntitySEDPSubscriptionsWriter,
		EntitySEDPPublicationsWriter,
		EntitySEDPTopicWriter,
		EntityP2PParticipantMessageWriter:
		return true
	}
	return false
}

// GUID globally identifies one endpoint.
type GUID struct {
	Prefix   GUIDPrefix
	EntityID EntityID
}

// GUIDUnknown is the zero GUID.
var GUIDUnknown = GUID{}

func NewGUID(prefix GUIDPrefix, entity EntityID) GUID {
	return GUID{Prefix: prefix, EntityID: entity}
}

func (g GUID) String() string {
	return g.Prefix.String() + ":" + g.EntityID.String()
}

// Compare orders GUIDs byte-wise, prefix first.
func (g GUID) Compare(o GUID) int {
	if c := g.Prefix.Compare(o.Prefix); c != 0 {
		return c
	}
	return bytes.Compare(g.EntityID[:], o.EntityID[:])
}

// SequenceNumber counts samples per writer, strictly increasing from 1.
type SequenceNumber int64

// RepresentationIdentifier tags the encoding of an opaque serialized
// payload, RTPS 2.3 section 10.
type RepresentationIdentifier uint16

const (
	RepresentationCDRBE   RepresentationIdentifier = 0x0000
	RepresentationCDRLE   RepresentationIdentifier = 0x0001
	RepresentationPLCDRBE RepresentationIdentifier = 0x0002
	RepresentationPLCDRLE RepresentationIdentifier = 0x0003
)
