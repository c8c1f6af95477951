package discovery

import (
	"sync"
	"sync/atomic"

	logging "github.com/sirupsen/logrus"

	"github.com/tarium/godds/pkg/rtps"
)

// DataUpdateKind tags the notification variants discovery emits to the
// data path.
type DataUpdateKind int

const (
	// ReadersInfoUpdated: the remote reader set changed; writers must
	// recompute their destination sets.
	ReadersInfoUpdated DataUpdateKind = iota
	// WritersInfoUpdated: the remote writer set changed.
	WritersInfoUpdated
	// TopicsInfoUpdated: topic metadata changed.
	TopicsInfoUpdated
	// AssertTopicLiveliness: the data path must refresh liveliness for
	// one writer.
	AssertTopicLiveliness
)

func (k DataUpdateKind) String() string {
	switch k {
	case ReadersInfoUpdated:
		return "readers-info-updated"
	case WritersInfoUpdated:
		return "writers-info-updated"
	case TopicsInfoUpdated:
		return "topics-info-updated"
	case AssertTopicLiveliness:
		return "assert-topic-liveliness"
	default:
		return "unknown"
	}
}

// DataUpdate is one discovery-to-data-path notification.
type DataUpdate struct {
	Kind DataUpdateKind
	// NeedsNewCacheChange rides on WritersInfoUpdated: writers must
	// publish a fresh discovery sample on their next send.
	NeedsNewCacheChange bool
	// WriterGUID rides on AssertTopicLiveliness.
	WriterGUID rtps.GUID
}

// UpdateQueue carries DataUpdates from the discovery loop to the single
// data-path consumer. Enqueue never blocks: discovery must not stall on a
// slow consumer, so overflow is logged and counted instead.
type UpdateQueue struct {
	updates   chan DataUpdate
	done      chan struct{}
	closed    uint32
	closeOnce sync.Once
	log       *logging.Entry
	metrics   queueMetrics
}

// NewUpdateQueue creates a queue with the given capacity.
func NewUpdateQueue(capacity int, log *logging.Entry) *UpdateQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &UpdateQueue{
		updates: make(chan DataUpdate, capacity),
		done:    make(chan struct{}),
		log:     log.WithField("component", "discovery-update-queue"),
		metrics: discoveryVecs.newQueueMetrics(),
	}
}

// Enqueue offers an update to the consumer. A full queue drops the
// update, logs and counts the drop, and returns false; a closed queue
// rejects the update and returns false.
func (q *UpdateQueue) Enqueue(update DataUpdate) bool {
	if atomic.LoadUint32(&q.closed) == 1 {
		return false
	}
	select {
	case q.updates <- update:
		q.metrics.incSent()
		return true
	default:
		q.metrics.incDropped()
		q.log.Errorf("discovery update queue full, dropping %s", update.Kind)
		return false
	}
}

// Updates is the consumer side.
func (q *UpdateQueue) Updates() <-chan DataUpdate {
	return q.updates
}

// Done is closed when the queue shuts down.
func (q *UpdateQueue) Done() <-chan struct{} {
	return q.done
}

// Close shuts the queue down. Pending updates remain readable.
func (q *UpdateQueue) Close() {
	q.closeOnce.Do(func() {
		atomic.StoreUint32(&q.closed, 1)
		close(q.done)
	})
}
