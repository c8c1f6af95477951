// Package qos models the DDS Quality-of-Service policies and the
// compatibility relation between a reader's requested policies and a
// writer's offered policies.
package qos

import (
	"github.com/tarium/godds/pkg/rtps"
)

type (
	// ReliabilityKind selects best-effort or reliable delivery.
	ReliabilityKind int

	// Reliability is the reliability policy. MaxBlockingTime only applies
	// to Reliable writers.
	Reliability struct {
		Kind            ReliabilityKind
		MaxBlockingTime rtps.Duration
	}

	// DurabilityKind orders how long samples survive for late joiners.
	DurabilityKind int

	// HistoryKind selects the retention model.
	HistoryKind int

	// History is the retention policy. Depth applies to KeepLast only.
	History struct {
		Kind  HistoryKind
		Depth int
	}

	// Deadline is the maximum expected interval between samples of one
	// instance.
	Deadline rtps.Duration

	// LatencyBudget is a delivery urgency hint.
	LatencyBudget rtps.Duration

	// OwnershipKind selects shared or exclusive instance ownership.
	OwnershipKind int

	// LivelinessKind orders how writer liveliness is asserted.
	LivelinessKind int

	// Liveliness is the writer-health assertion policy.
	Liveliness struct {
		Kind          LivelinessKind
		LeaseDuration rtps.Duration
	}

	// TimeBasedFilter is the minimum separation a reader wants between
	// samples of one instance.
	TimeBasedFilter rtps.Duration

	// PresentationAccessScope scopes coherent/ordered access.
	PresentationAccessScope int

	// Presentation controls how changes are presented to the reader.
	Presentation struct {
		AccessScope    PresentationAccessScope
		CoherentAccess bool
		OrderedAccess  bool
	}

	// DestinationOrderKind selects the sample ordering key on the reader
	// side.
	DestinationOrderKind int

	// ResourceLimits bounds a KeepAll history.
	ResourceLimits struct {
		MaxSamples            int
		MaxInstances          int
		MaxSamplesPerInstance int
	}

	// Lifespan is the maximum age of a sample before it is removed.
	Lifespan rtps.Duration

	// Policies is the optional-per-policy bundle attached to topics and
	// endpoints. A nil field means "not set"; defaults apply.
	Policies struct {
		Reliability      *Reliability
		Durability       *DurabilityKind
		History          *History
		Deadline         *Deadline
		LatencyBudget    *LatencyBudget
		Ownership        *OwnershipKind
		Liveliness       *Liveliness
		TimeBasedFilter  *TimeBasedFilter
		Presentation     *Presentation
		DestinationOrder *DestinationOrderKind
		ResourceLimits   *ResourceLimits
		Lifespan         *Lifespan
	}
)

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

// Durability kinds, weakest to strongest.
const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

const (
	KeepLast HistoryKind = iota
	KeepAll
)

const (
	Shared OwnershipKind = iota
	Exclusive
)

// Liveliness kinds, weakest to strongest.
const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

const (
	AccessScopeInstance PresentationAccessScope = iota
	AccessScopeTopic
	AccessScopeGroup
)

const (
	ByReceptionTimestamp DestinationOrderKind = iota
	BySourceTimestamp
)

// EffectiveReliability returns the reliability policy, defaulting to
// BestEffort when unset.
func (p *Policies) EffectiveReliability() Reliability {
	if p != nil && p.Reliability != nil {
		return *p.Reliability
	}
	return Reliability{Kind: BestEffort}
}

// EffectiveDurability defaults to Volatile.
func (p *Policies) EffectiveDurability() DurabilityKind {
	if p != nil && p.Durability != nil {
		return *p.Durability
	}
	return Volatile
}

// EffectiveHistory defaults to KeepLast depth 1.
func (p *Policies) EffectiveHistory() History {
	if p != nil && p.History != nil {
		return *p.History
	}
	return History{Kind: KeepLast, Depth: 1}
}

// EffectiveDeadline defaults to infinite.
func (p *Policies) EffectiveDeadline() Deadline {
	if p != nil && p.Deadline != nil {
		return *p.Deadline
	}
	return Deadline(rtps.DurationInfinite)
}

// EffectiveOwnership defaults to Shared.
func (p *Policies) EffectiveOwnership() OwnershipKind {
	if p != nil && p.Ownership != nil {
		return *p.Ownership
	}
	return Shared
}

// EffectiveLiveliness defaults to Automatic with an infinite lease.
func (p *Policies) EffectiveLiveliness() Liveliness {
	if p != nil && p.Liveliness != nil {
		return *p.Liveliness
	}
	return Liveliness{Kind: Automatic, LeaseDuration: rtps.DurationInfinite}
}

// EffectiveDestinationOrder defaults to ByReceptionTimestamp.
func (p *Policies) EffectiveDestinationOrder() DestinationOrderKind {
	if p != nil && p.DestinationOrder != nil {
		return *p.DestinationOrder
	}
	return ByReceptionTimestamp
}
