// Package sample implements the DDS sample-state model: the per-reader
// projection that attaches sample, view, and instance states to cache
// changes at read time, together with the generation counts and ranks of
// DDS 2.2.2.5.1.
package sample

// StateMask is a bitmask over sample, view, or instance states. The bit
// values follow the DCPS PSM, where the states are IDL unsigned longs.
type StateMask uint32

// Sample states: whether this reader has already read the sample.
const (
	Read    StateMask = 0b0001
	NotRead StateMask = 0b0010

	AnySampleState = Read | NotRead
)

// View states: whether the instance is new to this reader, either because
// the reader never accessed it or because it was reborn since.
const (
	New    StateMask = 0b0001
	NotNew StateMask = 0b0010

	AnyViewState = New | NotNew
)

// Instance states.
const (
	Alive             StateMask = 0b0001
	NotAliveDisposed  StateMask = 0b0010
	NotAliveNoWriters StateMask = 0b0100

	AnyInstanceState = Alive | NotAliveDisposed | NotAliveNoWriters
	NotAliveStates   = NotAliveDisposed | NotAliveNoWriters
)

// Contains reports whether m includes state s.
func (m StateMask) Contains(s StateMask) bool {
	return m&s != 0
}

// ReadCondition selects samples by a bitmask over each of the three state
// dimensions.
type ReadCondition struct {
	SampleStates   StateMask
	ViewStates     StateMask
	InstanceStates StateMask
}

// AnyCondition matches every sample.
func AnyCondition() ReadCondition {
	return ReadCondition{
		SampleStates:   AnySampleState,
		ViewStates:     AnyViewState,
		InstanceStates: AnyInstanceState,
	}
}

// NotReadCondition matches previously unread samples in any view or
// instance state.
func NotReadCondition() ReadCondition {
	return ReadCondition{
		SampleStates:   NotRead,
		ViewStates:     AnyViewState,
		InstanceStates: AnyInstanceState,
	}
}

func (rc ReadCondition) matches(sampleState, viewState, instanceState StateMask) bool {
	return rc.SampleStates.Contains(sampleState) &&
		rc.ViewStates.Contains(viewState) &&
		rc.InstanceStates.Contains(instanceState)
}
