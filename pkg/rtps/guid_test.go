package rtps

import (
	"testing"
)

func TestGUIDCompare(t *testing.T) {
	for _, tt := range []struct {
		name     string
		a, b     GUID
		expected int
	}{
		{
			name:     "equal",
			a:        NewGUID(GUIDPrefix{1, 2, 3}, EntityParticipant),
			b:        NewGUID(GUIDPrefix{1, 2, 3}, EntityParticipant),
			expected: 0,
		},
		{
			name:     "prefix orders first",
			a:        NewGUID(GUIDPrefix{1}, EntitySPDPParticipantWriter),
			b:        NewGUID(GUIDPrefix{2}, EntityParticipant),
			expected: -1,
		},
		{
			name:     "entity id breaks prefix ties",
			a:        NewGUID(GUIDPrefix{1}, EntitySEDPTopicWriter),
			b:        NewGUID(GUIDPrefix{1}, EntitySEDPTopicReader),
			expected: -1,
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if c := tt.a.Compare(tt.b); c != tt.expected {
				t.Fatalf("Expected compare %d, got %d", tt.expected, c)
			}
			if c := tt.b.Compare(tt.a); c != -tt.expected {
				t.Fatalf("Expected inverse compare %d, got %d", -tt.expected, c)
			}
		})
	}
}

func TestNewGUIDPrefixIsUnique(t *testing.T) {
	seen := make(map[GUIDPrefix]struct{})
	for i := 0; i < 1000; i++ {
		p := NewGUIDPrefix(VendorUnknown)
		if _, dup := seen[p]; dup {
			t.Fatalf("generated duplicate prefix %s", p)
		}
		seen[p] = struct{}{}
	}
}

func TestBuiltinEntityClassification(t *testing.T) {
	readers := []EntityID{
		EntitySPDPParticipantReader,
		EntitySEDPSubscriptionsReader,
		EntitySEDPPublicationsReader,
		EntitySEDPTopicReader,
		EntityP2PParticipantMessageReader,
	}
	writers := []EntityID{
		EntitySPDPParticipantWriter,
		EntitySEDPSubscriptionsWriter,
		EntitySEDPPublicationsWriter,
		EntitySEDPTopicWriter,
		EntityP2PParticipantMessageWriter,
	}
	for _, e := range readers {
		if !e.IsBuiltinReader() {
			t.Errorf("%s should be a builtin reader", e)
		}
		if e.IsBuiltinWriter() {
			t.Errorf("%s should not be a builtin writer", e)
		}
	}
	for _, e := range writers {
		if !e.IsBuiltinWriter() {
			t.Errorf("%s should be a builtin writer", e)
		}
		if e.IsBuiltinReader() {
			t.Errorf("%s should not be a builtin reader", e)
		}
	}

	user := NewUserWriterEntityID([3]byte{0, 0, 1}, true)
	if user.IsBuiltinWriter() || user.IsBuiltinReader() {
		t.Errorf("user entity %s misclassified as builtin", user)
	}
}

func TestWellKnownPorts(t *testing.T) {
	for _, tt := range []struct {
		name     string
		actual   uint32
		expected uint32
	}{
		{"spdp multicast domain 0", SPDPWellKnownMulticastPort(0), 7400},
		{"spdp multicast domain 1", SPDPWellKnownMulticastPort(1), 7650},
		{"spdp unicast domain 0 participant 0", SPDPWellKnownUnicastPort(0, 0), 7410},
		{"spdp unicast domain 0 participant 1", SPDPWellKnownUnicastPort(0, 1), 7412},
		{"user multicast domain 0", UserTrafficMulticastPort(0), 7401},
		{"user unicast domain 2 participant 3", UserTrafficUnicastPort(2, 3), 7917},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Fatalf("Expected port %d, got %d", tt.expected, tt.actual)
			}
		})
	}
}
