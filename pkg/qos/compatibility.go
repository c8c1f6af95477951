package qos

import "fmt"

// Incompatibility reports the first policy that makes a requested/offered
// pair incompatible. It is surfaced as an endpoint status, never as a
// call failure.
type Incompatibility struct {
	Policy    string
	Requested string
	Offered   string
}

func (i *Incompatibility) Error() string {
	return fmt.Sprintf("incompatible %s: requested %s, offered %s", i.Policy, i.Requested, i.Offered)
}

// Compatible checks a reader's requested policies against a writer's
// offered policies. A nil return means the endpoints may match.
//
// The rules are the standard DDS request/offer semantics:
//   - Reliability: requested BestEffort accepts anything; requested
//     Reliable requires offered Reliable.
//   - Durability: requested must not exceed offered in the order
//     Volatile < TransientLocal < Transient < Persistent.
//   - Deadline: requested period must be >= offered period.
//   - Liveliness: requested kind must not exceed offered kind in the order
//     Automatic < ManualByParticipant < ManualByTopic, and the requested
//     lease must be >= the offered lease.
//   - Ownership: must be equal.
func Compatible(requested, offered *Policies) *Incompatibility {
	reqRel := requested.EffectiveReliability()
	offRel := offered.EffectiveReliability()
	if reqRel.Kind == Reliable && offRel.Kind != Reliable {
		return &Incompatibility{
			Policy:    "reliability",
			Requested: reliabilityName(reqRel.Kind),
			Offered:   reliabilityName(offRel.Kind),
		}
	}

	reqDur := requested.EffectiveDurability()
	offDur := offered.EffectiveDurability()
	if reqDur > offDur {
		return &Incompatibility{
			Policy:    "durability",
			Requested: durabilityName(reqDur),
			Offered:   durabilityName(offDur),
		}
	}

	reqDl := requested.EffectiveDeadline()
	offDl := offered.EffectiveDeadline()
	if reqDl < offDl {
		return &Incompatibility{
			Policy:    "deadline",
			Requested: fmt.Sprint(reqDl),
			Offered:   fmt.Sprint(offDl),
		}
	}

	reqLv := requested.EffectiveLiveliness()
	offLv := offered.EffectiveLiveliness()
	if reqLv.Kind > offLv.Kind {
		return &Incompatibility{
			Policy:    "liveliness",
			Requested: livelinessName(reqLv.Kind),
			Offered:   livelinessName(offLv.Kind),
		}
	}
	if reqLv.LeaseDuration < offLv.LeaseDuration {
		return &Incompatibility{
			Policy:    "liveliness lease",
			Requested: reqLv.LeaseDuration.String(),
			Offered:   offLv.LeaseDuration.String(),
		}
	}

	reqOwn := requested.EffectiveOwnership()
	offOwn := offered.EffectiveOwnership()
	if reqOwn != offOwn {
		return &Incompatibility{
			Policy:    "ownership",
			Requested: ownershipName(reqOwn),
			Offered:   ownershipName(offOwn),
		}
	}

	return nil
}

func reliabilityName(k ReliabilityKind) string {
	if k == Reliable {
		return "Reliable"
	}
	return "BestEffort"
}

func durabilityName(k DurabilityKind) string {
	switch k {
	case TransientLocal:
		return "TransientLocal"
	case Transient:
		return "Transient"
	case Persistent:
		return "Persistent"
	default:
		return "Volatile"
	}
}

func livelinessName(k LivelinessKind) string {
	switch k {
	case ManualByParticipant:
		return "ManualByParticipant"
	case ManualByTopic:
		return "ManualByTopic"
	default:
		return "Automatic"
	}
}

func ownershipName(k OwnershipKind) string {
	if k == Exclusive {
		return "Exclusive"
	}
	return "Shared"
}
