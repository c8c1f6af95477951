package sample

import (
	"github.com/tarium/godds/pkg/rtps"
)

// Info carries the per-read metadata of one returned sample. It is
// computed at read time, never stored in the cache.
type Info struct {
	SampleState   StateMask
	ViewState     StateMask
	InstanceState StateMask

	// Reader-scoped snapshots of the instance's rebirth counters at the
	// time the sample was received.
	DisposedGenerationCount  int32
	NoWritersGenerationCount int32

	// Ranks are computed over the collection actually returned by the
	// read or take call.
	SampleRank             int32
	GenerationRank         int32
	AbsoluteGenerationRank int32

	SourceTimestamp rtps.Timestamp

	// PublicationHandle identifies the writer that produced the sample.
	PublicationHandle rtps.GUID
}

// DataSample is one sample as returned to the application. Value is the
// deserialized payload when the sample is valid; on dispose or unregister
// announcements Value is nil and only KeyValue is set.
type DataSample struct {
	Info     Info
	Value    interface{}
	KeyValue interface{}
}

// Valid reports whether the sample carries data, as opposed to announcing
// an instance state change.
func (s *DataSample) Valid() bool {
	return s.Value != nil
}
