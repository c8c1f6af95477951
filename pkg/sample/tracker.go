package sample

import (
	"sort"

	"github.com/tarium/godds/pkg/cache"
	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
)

type (
	// Tracker keeps one reader's view of a topic cache: which changes have
	// been seen and read, and the state machine of every instance the
	// reader has observed. The cache stores raw changes; the tracker is
	// what turns them into DDS samples.
	Tracker struct {
		order     qos.DestinationOrderKind
		instances map[string]*instance
		records   map[rtps.Timestamp]*record
		watermark rtps.Timestamp
	}

	instance struct {
		state        StateMask
		accessed     bool
		reborn       bool
		disposedGen  int32
		noWritersGen int32
		lastWriter   rtps.GUID
	}

	record struct {
		ts     rtps.Timestamp
		source rtps.Timestamp
		key    string
		writer rtps.GUID
		seq    rtps.SequenceNumber
		kind   cache.ChangeKind

		read  bool
		taken bool

		disposedGen  int32
		noWritersGen int32
	}

	// Selection is one sample chosen by Select, carrying everything the
	// façade needs to build a DataSample.
	Selection struct {
		Timestamp rtps.Timestamp
		Kind      cache.ChangeKind
		Info      Info
	}
)

// NewTracker creates an empty reader view ordered by the topic's
// destination order.
func NewTracker(order qos.DestinationOrderKind) *Tracker {
	return &Tracker{
		order:     order,
		instances: make(map[string]*instance),
		records:   make(map[rtps.Timestamp]*record),
	}
}

// Ingest advances the view over newly arrived changes. Changes must be
// presented in ascending reception-timestamp order, which is what the
// cache range scans produce. Each change is processed once: the instance
// state machine advances and the generation counters are snapshotted into
// the change's record.
func (t *Tracker) Ingest(changes []cache.TimestampedChange) {
	for _, tc := range changes {
		if _, seen := t.records[tc.Timestamp]; seen {
			continue
		}
		ch := tc.Change
		key := string(ch.Key)

		inst, ok := t.instances[key]
		if !ok {
			inst = &instance{state: Alive}
			t.instances[key] = inst
		}

		switch ch.Kind {
		case cache.Alive:
			if ok && inst.state != Alive {
				// rebirth: the instance transitions back to alive and
				// becomes new again for this reader
				if inst.state == NotAliveDisposed {
					inst.disposedGen++
				} else {
					inst.noWritersGen++
				}
				inst.state = Alive
				inst.reborn = true
			}
			inst.lastWriter = ch.WriterGUID
		case cache.NotAliveDisposed:
			inst.state = NotAliveDisposed
		case cache.NotAliveUnregistered:
			// the last writer unregistered; with no writer remaining the
			// instance has no owner
			inst.state = NotAliveNoWriters
		}

		t.records[tc.Timestamp] = &record{
			ts:           tc.Timestamp,
			source:       ch.SourceTimestamp,
			key:          key,
			writer:       ch.WriterGUID,
			seq:          ch.SequenceNumber,
			kind:         ch.Kind,
			disposedGen:  inst.disposedGen,
			noWritersGen: inst.noWritersGen,
		}
		if tc.Timestamp > t.watermark {
			t.watermark = tc.Timestamp
		}
	}
}

// Watermark returns the highest reception timestamp ingested so far, zero
// if nothing was ingested. Feed it back into the cache's half-open range
// scan to resume without duplicates.
func (t *Tracker) Watermark() rtps.Timestamp {
	return t.watermark
}

// OnWriterLost transitions every alive instance last written by the given
// writer to NotAliveNoWriters. The data path calls this when a writer's
// liveliness lease lapses or its participant expires.
func (t *Tracker) OnWriterLost(writer rtps.GUID) int {
	n := 0
	for _, inst := range t.instances {
		if inst.state == Alive && inst.lastWriter == writer {
			inst.state = NotAliveNoWriters
			n++
		}
	}
	return n
}

// Prune forgets records that can never be returned again: every record
// this reader has taken, and every read record whose cache change no
// longer exists (evicted, or taken by every reader). An unread record
// whose change is gone stays until a Select has visited it. Instance
// state and generation counters are unaffected.
func (t *Tracker) Prune(has func(rtps.Timestamp) bool) {
	for ts, r := range t.records {
		if r.taken || !has(ts) {
			if r.read || r.taken {
				delete(t.records, ts)
			}
		}
	}
}

// Select returns up to max samples matching the condition, ordered by the
// destination order, computing states, generation counts, and ranks over
// the returned collection. When take is true the selected records are
// consumed: they will never be returned again by this reader. Otherwise
// their sample state transitions NotRead to Read.
func (t *Tracker) Select(max int, cond ReadCondition, take bool) []Selection {
	candidates := make([]*record, 0, len(t.records))
	for _, r := range t.records {
		if r.taken {
			continue
		}
		candidates = append(candidates, r)
	}
	t.sortRecords(candidates)

	limit := max
	if limit < 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	selected := make([]*record, 0, limit)
	for _, r := range candidates {
		if len(selected) >= limit {
			break
		}
		if cond.matches(t.sampleStateOf(r), t.viewStateOf(r), t.instanceStateOf(r)) {
			selected = append(selected, r)
		}
	}
	if len(selected) == 0 {
		return nil
	}

	// most recent sample of each instance within the returned collection
	mrsic := make(map[string]*record, len(selected))
	following := make(map[string]int32, len(selected))
	for _, r := range selected {
		mrsic[r.key] = r
	}

	out := make([]Selection, 0, len(selected))
	for i := len(selected) - 1; i >= 0; i-- {
		r := selected[i]
		m := mrsic[r.key]
		inst := t.instances[r.key]

		info := Info{
			SampleState:              t.sampleStateOf(r),
			ViewState:                t.viewStateOf(r),
			InstanceState:            t.instanceStateOf(r),
			DisposedGenerationCount:  r.disposedGen,
			NoWritersGenerationCount: r.noWritersGen,
			SampleRank:               following[r.key],
			GenerationRank:           (m.disposedGen + m.noWritersGen) - (r.disposedGen + r.noWritersGen),
			AbsoluteGenerationRank:   (inst.disposedGen + inst.noWritersGen) - (r.disposedGen + r.noWritersGen),
			SourceTimestamp:          r.source,
			PublicationHandle:        r.writer,
		}
		following[r.key]++
		out = append(out, Selection{Timestamp: r.ts, Kind: r.kind, Info: info})
	}
	// restore ascending order after the reverse rank pass
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	// the access itself transitions states: samples become read, touched
	// instances stop being new
	for _, r := range selected {
		r.read = true
		if take {
			r.taken = true
		}
		inst := t.instances[r.key]
		inst.accessed = true
		inst.reborn = false
	}
	return out
}

// sortRecords orders by reception timestamp, or by source timestamp with
// writer GUID then reception timestamp as tiebreaks when the topic orders
// by source.
func (t *Tracker) sortRecords(rs []*record) {
	if t.order == qos.BySourceTimestamp {
		sort.Slice(rs, func(i, j int) bool {
			if rs[i].source != rs[j].source {
				return rs[i].source < rs[j].source
			}
			if c := rs[i].writer.Compare(rs[j].writer); c != 0 {
				return c < 0
			}
			return rs[i].ts < rs[j].ts
		})
		return
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].ts < rs[j].ts })
}

func (t *Tracker) sampleStateOf(r *record) StateMask {
	if r.read {
		return Read
	}
	return NotRead
}

func (t *Tracker) viewStateOf(r *record) StateMask {
	inst := t.instances[r.key]
	if !inst.accessed || inst.reborn {
		return New
	}
	return NotNew
}

func (t *Tracker) instanceStateOf(r *record) StateMask {
	return t.instances[r.key].state
}
