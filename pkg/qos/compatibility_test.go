package qos

import (
	"testing"

	"github.com/tarium/godds/pkg/rtps"
)

func TestCompatible(t *testing.T) {
	for _, tt := range []struct {
		name           string
		requested      Policies
		offered        Policies
		expectedPolicy string // empty means compatible
	}{
		{
			name:      "empty policies are compatible",
			requested: Policies{},
			offered:   Policies{},
		},
		{
			name:      "best effort accepts reliable offer",
			requested: NewBuilder().Reliability(Reliability{Kind: BestEffort}).Build(),
			offered:   NewBuilder().Reliability(Reliability{Kind: Reliable}).Build(),
		},
		{
			name:           "reliable request rejects best effort offer",
			requested:      NewBuilder().Reliability(Reliability{Kind: Reliable}).Build(),
			offered:        NewBuilder().Reliability(Reliability{Kind: BestEffort}).Build(),
			expectedPolicy: "reliability",
		},
		{
			name:      "volatile request accepts transient local offer",
			requested: NewBuilder().Durability(Volatile).Build(),
			offered:   NewBuilder().Durability(TransientLocal).Build(),
		},
		{
			name:           "persistent request rejects transient offer",
			requested:      NewBuilder().Durability(Persistent).Build(),
			offered:        NewBuilder().Durability(Transient).Build(),
			expectedPolicy: "durability",
		},
		{
			name:      "looser requested deadline is fine",
			requested: NewBuilder().Deadline(Deadline(rtps.DurationFrom(2000))).Build(),
			offered:   NewBuilder().Deadline(Deadline(rtps.DurationFrom(1000))).Build(),
		},
		{
			name:           "tighter requested deadline is not",
			requested:      NewBuilder().Deadline(Deadline(rtps.DurationFrom(500))).Build(),
			offered:        NewBuilder().Deadline(Deadline(rtps.DurationFrom(1000))).Build(),
			expectedPolicy: "deadline",
		},
		{
			name:      "automatic request accepts manual by topic offer",
			requested: NewBuilder().Liveliness(Liveliness{Kind: Automatic, LeaseDuration: rtps.DurationInfinite}).Build(),
			offered:   NewBuilder().Liveliness(Liveliness{Kind: ManualByTopic, LeaseDuration: rtps.DurationInfinite}).Build(),
		},
		{
			name:           "manual by topic request rejects automatic offer",
			requested:      NewBuilder().Liveliness(Liveliness{Kind: ManualByTopic, LeaseDuration: rtps.DurationInfinite}).Build(),
			offered:        NewBuilder().Liveliness(Liveliness{Kind: Automatic, LeaseDuration: rtps.DurationInfinite}).Build(),
			expectedPolicy: "liveliness",
		},
		{
			name: "requested lease shorter than offered is rejected",
			requested: NewBuilder().
				Liveliness(Liveliness{Kind: Automatic, LeaseDuration: rtps.DurationFrom(1000)}).Build(),
			offered: NewBuilder().
				Liveliness(Liveliness{Kind: Automatic, LeaseDuration: rtps.DurationFrom(2000)}).Build(),
			expectedPolicy: "liveliness lease",
		},
		{
			name:           "ownership must be equal",
			requested:      NewBuilder().Ownership(Exclusive).Build(),
			offered:        NewBuilder().Ownership(Shared).Build(),
			expectedPolicy: "ownership",
		},
		{
			name: "fully specified compatible pair",
			requested: NewBuilder().
				Reliability(Reliability{Kind: Reliable}).
				Durability(TransientLocal).
				Ownership(Shared).
				Build(),
			offered: NewBuilder().
				Reliability(Reliability{Kind: Reliable}).
				Durability(Transient).
				Ownership(Shared).
				Build(),
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			incompat := Compatible(&tt.requested, &tt.offered)
			if tt.expectedPolicy == "" {
				if incompat != nil {
					t.Fatalf("Expected compatible, got %s", incompat)
				}
				return
			}
			if incompat == nil {
				t.Fatalf("Expected incompatibility on %s, got compatible", tt.expectedPolicy)
			}
			if incompat.Policy != tt.expectedPolicy {
				t.Fatalf("Expected incompatibility on %s, got %s", tt.expectedPolicy, incompat.Policy)
			}
		})
	}
}

func TestEffectiveDefaults(t *testing.T) {
	var p Policies
	if rel := p.EffectiveReliability(); rel.Kind != BestEffort {
		t.Errorf("Expected default reliability BestEffort, got %v", rel.Kind)
	}
	if d := p.EffectiveDurability(); d != Volatile {
		t.Errorf("Expected default durability Volatile, got %v", d)
	}
	if h := p.EffectiveHistory(); h.Kind != KeepLast || h.Depth != 1 {
		t.Errorf("Expected default history KeepLast(1), got %+v", h)
	}
	if lv := p.EffectiveLiveliness(); lv.Kind != Automatic || lv.LeaseDuration != rtps.DurationInfinite {
		t.Errorf("Expected default liveliness Automatic/infinite, got %+v", lv)
	}
}
