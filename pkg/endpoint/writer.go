package endpoint

import (
	"fmt"
	"sync"
	"time"

	logging "github.com/sirupsen/logrus"

	"github.com/tarium/godds/pkg/cache"
	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
)

// Writer publishes typed samples on one topic. Each Write serializes the
// value, stamps it with a fresh strictly-monotonic timestamp and the next
// sequence number, inserts an ALIVE change into the topic cache, enforces
// the history retention policy, and wakes the data path.
type Writer struct {
	mu sync.Mutex

	guid     rtps.GUID
	topic    string
	policies qos.Policies

	cache *cache.DDSCache
	ser   Serializer

	seq rtps.SequenceNumber
	// retained changes per instance, oldest first, for KeepLast eviction
	// and resource accounting
	instances map[string][]rtps.Timestamp
	total     int

	onSample         func()
	onAssertLiveness func()
	closed           bool

	log *logging.Entry
}

// NewWriter attaches a writer to an existing topic cache. onSample is
// invoked after every successful insertion; the participant wires it to
// the wakeups of the local readers on the topic.
func NewWriter(guid rtps.GUID, topic string, policies qos.Policies, ddsCache *cache.DDSCache, ser Serializer, onSample func(), log *logging.Entry) (*Writer, error) {
	if err := ddsCache.RegisterWriter(topic); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPreconditionNotMet, err)
	}
	return &Writer{
		guid:      guid,
		topic:     topic,
		policies:  policies,
		cache:     ddsCache,
		ser:       ser,
		instances: make(map[string][]rtps.Timestamp),
		onSample:  onSample,
		log: log.WithFields(logging.Fields{
			"component": "writer",
			"topic":     topic,
			"guid":      guid.String(),
		}),
	}, nil
}

// GUID returns the writer's endpoint GUID.
func (w *Writer) GUID() rtps.GUID {
	return w.guid
}

// Topic returns the topic name the writer publishes on.
func (w *Writer) Topic() string {
	return w.topic
}

// Qos returns the writer's offered policies.
func (w *Writer) Qos() qos.Policies {
	return w.policies
}

// SetLivelinessHook wires AssertLiveliness to the discovery loop. The
// participant installs it at creation time.
func (w *Writer) SetLivelinessHook(hook func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onAssertLiveness = hook
}

// AssertLiveliness manually asserts that this writer is alive, for
// manual-by-topic liveliness.
func (w *Writer) AssertLiveliness() {
	w.mu.Lock()
	hook := w.onAssertLiveness
	w.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Write publishes a value with the current time as source timestamp.
func (w *Writer) Write(value interface{}) error {
	return w.WriteWithTimestamp(value, rtps.Now())
}

// WriteWithTimestamp publishes a value with an explicit source timestamp.
func (w *Writer) WriteWithTimestamp(value interface{}, source rtps.Timestamp) error {
	payload, key, err := w.ser.Serialize(value)
	if err != nil {
		return fmt.Errorf("serializing sample: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("%w: writer is closed", ErrPreconditionNotMet)
	}

	if err := w.waitForSpaceLocked(string(key)); err != nil {
		return err
	}

	w.seq++
	ts := rtps.Now()
	w.cache.AddChange(w.topic, ts, cache.NewAliveChange(
		w.guid, w.seq, source, key,
		cache.DataPayload(w.ser.Representation(), payload),
	))
	w.retainLocked(string(key), ts)

	if w.onSample != nil {
		w.onSample()
	}
	return nil
}

// Dispose announces that an instance is deliberately gone. The change
// carries only the serialized key.
func (w *Writer) Dispose(key interface{}) error {
	return w.DisposeWithTimestamp(key, rtps.Now())
}

// DisposeWithTimestamp disposes with an explicit source timestamp.
func (w *Writer) DisposeWithTimestamp(key interface{}, source rtps.Timestamp) error {
	keyBytes, err := w.ser.SerializeKey(key)
	if err != nil {
		return fmt.Errorf("serializing key: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("%w: writer is closed", ErrPreconditionNotMet)
	}

	w.seq++
	ts := rtps.Now()
	w.cache.AddChange(w.topic, ts, cache.NewDisposeChange(
		w.guid, w.seq, source, keyBytes,
		cache.KeyPayload(w.ser.Representation(), keyBytes),
	))
	w.retainLocked(string(keyBytes), ts)

	if w.onSample != nil {
		w.onSample()
	}
	return nil
}

// Close detaches the writer from its topic cache. Further writes fail
// with ErrPreconditionNotMet.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.cache.UnregisterWriter(w.topic)
}

// retainLocked records the new change against its instance and applies
// KeepLast eviction: no more than depth changes per instance remain.
func (w *Writer) retainLocked(key string, ts rtps.Timestamp) {
	w.instances[key] = append(w.instances[key], ts)
	w.total++

	hist := w.policies.EffectiveHistory()
	if hist.Kind != qos.KeepLast {
		return
	}
	depth := hist.Depth
	if depth < 1 {
		depth = 1
	}
	for len(w.instances[key]) > depth {
		oldest := w.instances[key][0]
		w.instances[key] = w.instances[key][1:]
		w.total--
		if _, ok := w.cache.RemoveChange(w.topic, oldest); !ok {
			// already taken by every reader
			w.log.Debugf("evicted change %d was already gone", oldest)
		}
	}
}

// waitForSpaceLocked enforces ResourceLimits under KeepAll. A reliable
// writer blocks up to MaxBlockingTime for readers to drain the cache; a
// best-effort writer fails immediately.
func (w *Writer) waitForSpaceLocked(key string) error {
	hist := w.policies.EffectiveHistory()
	if hist.Kind != qos.KeepAll || w.policies.ResourceLimits == nil {
		return nil
	}
	limits := *w.policies.ResourceLimits
	rel := w.policies.EffectiveReliability()

	deadline := time.Time{}
	if rel.Kind == qos.Reliable {
		deadline = time.Now().Add(rel.MaxBlockingTime.Std())
	}

	for {
		w.pruneTakenLocked()
		perInstance := limits.MaxSamplesPerInstance <= 0 || len(w.instances[key]) < limits.MaxSamplesPerInstance
		overall := limits.MaxSamples <= 0 || w.total < limits.MaxSamples
		if perInstance && overall {
			return nil
		}
		if rel.Kind != qos.Reliable {
			return fmt.Errorf("%w: history full on topic %s", ErrOutOfResources, w.topic)
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: history full on topic %s after %s", ErrTimeout, w.topic, rel.MaxBlockingTime)
		}

		w.mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		w.mu.Lock()
		if w.closed {
			return fmt.Errorf("%w: writer closed while blocked", ErrPreconditionNotMet)
		}
	}
}

// pruneTakenLocked drops accounting entries whose changes every reader
// has already taken out of the cache.
func (w *Writer) pruneTakenLocked() {
	for key, tss := range w.instances {
		kept := tss[:0]
		for _, ts := range tss {
			if _, ok := w.cache.GetChange(w.topic, ts); ok {
				kept = append(kept, ts)
			} else {
				w.total--
			}
		}
		if len(kept) == 0 {
			delete(w.instances, key)
		} else {
			w.instances[key] = kept
		}
	}
}
