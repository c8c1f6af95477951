// Package cache implements the process-wide sample cache backing every
// local reader and writer. Each published or subscribed topic owns one
// TopicCache; all cache changes inside one TopicCache share the topic's
// serialized data type, so they can all be decoded the same way. Topics
// are identified by name, unique within the whole domain.
package cache

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	logging "github.com/sirupsen/logrus"

	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
)

// TypeDesc names a topic's serialized data type. It is a tag, not a
// structural type: matching is by name only.
type TypeDesc string

// TopicKind states whether samples of a topic carry an instance key.
type TopicKind int

const (
	WithKey TopicKind = iota
	NoKey
)

// TimestampedChange pairs a cache change with its reception timestamp key.
type TimestampedChange struct {
	Timestamp rtps.Timestamp
	Change    CacheChange
}

type entry struct {
	ts      rtps.Timestamp
	change  CacheChange
	takenBy map[int64]struct{}
}

func lessEntry(a, b *entry) bool {
	return a.ts < b.ts
}

// TopicCache holds the declared type, kind, and effective QoS of one
// topic, plus its time-ordered history. Readers register so that a
// reader-scoped take can tell when every interested reader has consumed a
// change.
type TopicCache struct {
	typeDesc TypeDesc
	kind     TopicKind
	topicQos qos.Policies

	history *btree.BTreeG[*entry]

	readers      map[int64]struct{}
	nextReaderID int64
	writerCount  int
}

func newTopicCache(kind TopicKind, typeDesc TypeDesc) *TopicCache {
	return &TopicCache{
		typeDesc: typeDesc,
		kind:     kind,
		history:  btree.NewG(8, lessEntry),
		readers:  map[int64]struct{}{},
	}
}

// DDSCache maps topic names to topic caches. It contains every cache
// change produced or received by the participant. A single RWMutex guards
// the whole structure; callers must never hold it across a channel send.
type DDSCache struct {
	sync.RWMutex
	topics map[string]*TopicCache
	log    *logging.Entry
}

// New creates an empty cache.
func New(log *logging.Entry) *DDSCache {
	return &DDSCache{
		topics: make(map[string]*TopicCache),
		log:    log.WithField("component", "dds-cache"),
	}
}

// AddTopic creates a topic cache. It is idempotent by name: if the topic
// already exists the call returns false and the existing record is left
// intact.
func (c *DDSCache) AddTopic(name string, kind TopicKind, typeDesc TypeDesc) bool {
	c.Lock()
	defer c.Unlock()

	if _, ok := c.topics[name]; ok {
		return false
	}
	c.topics[name] = newTopicCache(kind, typeDesc)
	return true
}

// HasTopic reports whether a topic cache exists.
func (c *DDSCache) HasTopic(name string) bool {
	c.RLock()
	defer c.RUnlock()
	_, ok := c.topics[name]
	return ok
}

// RemoveTopic deletes a topic cache. It fails while any reader or writer
// is still attached to the topic.
func (c *DDSCache) RemoveTopic(name string) error {
	c.Lock()
	defer c.Unlock()

	tc, ok := c.topics[name]
	if !ok {
		return nil
	}
	if len(tc.readers) > 0 || tc.writerCount > 0 {
		return fmt.Errorf("topic %s still has %d readers and %d writers", name, len(tc.readers), tc.writerCount)
	}
	delete(c.topics, name)
	return nil
}

// TopicKindOf returns the declared kind of a topic.
func (c *DDSCache) TopicKindOf(name string) (TopicKind, bool) {
	c.RLock()
	defer c.RUnlock()
	tc, ok := c.topics[name]
	if !ok {
		return WithKey, false
	}
	return tc.kind, true
}

// TypeDescOf returns the declared type of a topic.
func (c *DDSCache) TypeDescOf(name string) (TypeDesc, bool) {
	c.RLock()
	defer c.RUnlock()
	tc, ok := c.topics[name]
	if !ok {
		return "", false
	}
	return tc.typeDesc, true
}

// TopicQos returns the effective QoS of a topic.
func (c *DDSCache) TopicQos(name string) (qos.Policies, bool) {
	c.RLock()
	defer c.RUnlock()
	tc, ok := c.topics[name]
	if !ok {
		return qos.Policies{}, false
	}
	return tc.topicQos, true
}

// SetTopicQos replaces the effective QoS of a topic.
func (c *DDSCache) SetTopicQos(name string, p qos.Policies) bool {
	c.Lock()
	defer c.Unlock()
	tc, ok := c.topics[name]
	if !ok {
		return false
	}
	tc.topicQos = p
	return true
}

// AddChange inserts a change at the given reception timestamp. Timestamps
// within one topic must be unique; the writer façade guarantees this by
// using the strictly monotonic clock. A collision means the uniqueness
// invariant is already broken, so it aborts.
func (c *DDSCache) AddChange(topic string, ts rtps.Timestamp, change CacheChange) {
	c.Lock()
	defer c.Unlock()

	tc, ok := c.topics[topic]
	if !ok {
		c.log.Fatalf("topic %s is not in the cache", topic)
	}
	if _, dup := tc.history.Get(&entry{ts: ts}); dup {
		c.log.Fatalf("duplicate cache timestamp %d on topic %s", ts, topic)
	}
	tc.history.ReplaceOrInsert(&entry{ts: ts, change: change, takenBy: map[int64]struct{}{}})
}

// GetChange looks up one change by timestamp.
func (c *DDSCache) GetChange(topic string, ts rtps.Timestamp) (CacheChange, bool) {
	c.RLock()
	defer c.RUnlock()

	tc, ok := c.topics[topic]
	if !ok {
		return CacheChange{}, false
	}
	e, ok := tc.history.Get(&entry{ts: ts})
	if !ok {
		return CacheChange{}, false
	}
	return e.change, true
}

// GetChangesInRange returns the changes with start < ts <= end, ascending
// by timestamp. The half-open convention lets a reader checkpoint the last
// returned timestamp and resume without duplicates.
func (c *DDSCache) GetChangesInRange(topic string, start, end rtps.Timestamp) []TimestampedChange {
	c.RLock()
	defer c.RUnlock()

	tc, ok := c.topics[topic]
	if !ok {
		return nil
	}
	var out []TimestampedChange
	tc.history.AscendRange(&entry{ts: start + 1}, &entry{ts: end + 1}, func(e *entry) bool {
		out = append(out, TimestampedChange{Timestamp: e.ts, Change: e.change})
		return true
	})
	return out
}

// GetAllChanges returns the topic's full history, ascending by timestamp.
func (c *DDSCache) GetAllChanges(topic string) []TimestampedChange {
	c.RLock()
	defer c.RUnlock()

	tc, ok := c.topics[topic]
	if !ok {
		return nil
	}
	out := make([]TimestampedChange, 0, tc.history.Len())
	tc.history.Ascend(func(e *entry) bool {
		out = append(out, TimestampedChange{Timestamp: e.ts, Change: e.change})
		return true
	})
	return out
}

// SetNotAliveDisposed mutates a change's kind in place, marking it as
// waiting for permanent removal.
func (c *DDSCache) SetNotAliveDisposed(topic string, ts rtps.Timestamp) {
	c.Lock()
	defer c.Unlock()

	tc, ok := c.topics[topic]
	if !ok {
		return
	}
	if e, ok := tc.history.Get(&entry{ts: ts}); ok {
		e.change.Kind = NotAliveDisposed
	}
}

// RemoveChange permanently removes a change, returning it if present.
func (c *DDSCache) RemoveChange(topic string, ts rtps.Timestamp) (CacheChange, bool) {
	c.Lock()
	defer c.Unlock()

	tc, ok := c.topics[topic]
	if !ok {
		return CacheChange{}, false
	}
	e, ok := tc.history.Delete(&entry{ts: ts})
	if !ok {
		return CacheChange{}, false
	}
	return e.change, true
}

// RegisterReader attaches a reader to a topic and returns its cache-scoped
// id, used to gate reader-scoped takes.
func (c *DDSCache) RegisterReader(topic string) (int64, error) {
	c.Lock()
	defer c.Unlock()

	tc, ok := c.topics[topic]
	if !ok {
		return 0, fmt.Errorf("topic %s is not in the cache", topic)
	}
	tc.nextReaderID++
	id := tc.nextReaderID
	tc.readers[id] = struct{}{}
	return id, nil
}

// UnregisterReader detaches a reader. Changes that were waiting only on
// this reader become removable and are dropped.
func (c *DDSCache) UnregisterReader(topic string, readerID int64) {
	c.Lock()
	defer c.Unlock()

	tc, ok := c.topics[topic]
	if !ok {
		return
	}
	delete(tc.readers, readerID)

	var complete []rtps.Timestamp
	tc.history.Ascend(func(e *entry) bool {
		delete(e.takenBy, readerID)
		if len(e.takenBy) > 0 && tc.takenByAll(e) {
			complete = append(complete, e.ts)
		}
		return true
	})
	for _, ts := range complete {
		tc.history.Delete(&entry{ts: ts})
	}
}

// RegisterWriter attaches a writer to a topic.
func (c *DDSCache) RegisterWriter(topic string) error {
	c.Lock()
	defer c.Unlock()

	tc, ok := c.topics[topic]
	if !ok {
		return fmt.Errorf("topic %s is not in the cache", topic)
	}
	tc.writerCount++
	return nil
}

// UnregisterWriter detaches a writer.
func (c *DDSCache) UnregisterWriter(topic string) {
	c.Lock()
	defer c.Unlock()

	if tc, ok := c.topics[topic]; ok && tc.writerCount > 0 {
		tc.writerCount--
	}
}

// MarkTaken records that a reader has taken a change. The change is
// physically removed once every registered reader has taken it; until
// then it persists so other readers still observe it. Returns whether the
// change was removed.
func (c *DDSCache) MarkTaken(topic string, ts rtps.Timestamp, readerID int64) bool {
	c.Lock()
	defer c.Unlock()

	tc, ok := c.topics[topic]
	if !ok {
		return false
	}
	e, ok := tc.history.Get(&entry{ts: ts})
	if !ok {
		return false
	}
	e.takenBy[readerID] = struct{}{}
	if tc.takenByAll(e) {
		tc.history.Delete(&entry{ts: ts})
		return true
	}
	return false
}

// ChangeCount returns the number of changes held for a topic.
func (c *DDSCache) ChangeCount(topic string) int {
	c.RLock()
	defer c.RUnlock()

	tc, ok := c.topics[topic]
	if !ok {
		return 0
	}
	return tc.history.Len()
}

func (tc *TopicCache) takenByAll(e *entry) bool {
	for id := range tc.readers {
		if _, ok := e.takenBy[id]; !ok {
			return false
		}
	}
	return true
}
