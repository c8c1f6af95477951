package endpoint

import (
	"fmt"
	"sync"

	logging "github.com/sirupsen/logrus"

	"github.com/tarium/godds/pkg/cache"
	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
	"github.com/tarium/godds/pkg/sample"
)

// Reader consumes typed samples from one topic. Reads never block on I/O:
// they project whatever the cache currently holds through the reader's
// own sample-state view.
type Reader struct {
	mu sync.Mutex

	guid     rtps.GUID
	topic    string
	policies qos.Policies

	cache   *cache.DDSCache
	des     Deserializer
	cacheID int64
	tracker *sample.Tracker

	wakeup chan struct{}
	closed bool

	log *logging.Entry
}

// NewReader attaches a reader to an existing topic cache.
func NewReader(guid rtps.GUID, topic string, policies qos.Policies, ddsCache *cache.DDSCache, des Deserializer, log *logging.Entry) (*Reader, error) {
	cacheID, err := ddsCache.RegisterReader(topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPreconditionNotMet, err)
	}
	return &Reader{
		guid:     guid,
		topic:    topic,
		policies: policies,
		cache:    ddsCache,
		des:      des,
		cacheID:  cacheID,
		tracker:  sample.NewTracker(policies.EffectiveDestinationOrder()),
		wakeup:   make(chan struct{}, 1),
		log: log.WithFields(logging.Fields{
			"component": "reader",
			"topic":     topic,
			"guid":      guid.String(),
		}),
	}, nil
}

// GUID returns the reader's endpoint GUID.
func (r *Reader) GUID() rtps.GUID {
	return r.guid
}

// Topic returns the topic name the reader subscribes to.
func (r *Reader) Topic() string {
	return r.topic
}

// Qos returns the reader's requested policies.
func (r *Reader) Qos() qos.Policies {
	return r.policies
}

// Wakeup returns the channel signalled whenever new data may be
// available. The discovery loop selects on this for built-in readers.
func (r *Reader) Wakeup() <-chan struct{} {
	return r.wakeup
}

// Notify signals the wakeup channel without blocking.
func (r *Reader) Notify() {
	select {
	case r.wakeup <- struct{}{}:
	default:
	}
}

// Read returns up to max samples matching the condition and transitions
// them NotRead to Read. The underlying changes stay in the cache.
func (r *Reader) Read(max int, cond sample.ReadCondition) ([]*sample.DataSample, error) {
	return r.collect(max, cond, false)
}

// Take returns up to max matching samples and consumes them: this reader
// will never see them again, and once every registered reader has taken a
// change it is removed from the cache.
func (r *Reader) Take(max int, cond sample.ReadCondition) ([]*sample.DataSample, error) {
	return r.collect(max, cond, true)
}

// TakeNextSample takes at most one previously-unread sample.
func (r *Reader) TakeNextSample() (*sample.DataSample, error) {
	samples, err := r.Take(1, sample.NotReadCondition())
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return samples[0], nil
}

// OnWriterLost transitions instances last written by the given writer to
// NotAliveNoWriters. The data path calls this on liveliness loss.
func (r *Reader) OnWriterLost(writer rtps.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.tracker.OnWriterLost(writer); n > 0 {
		r.log.Debugf("%d instances lost their writer %s", n, writer)
	}
}

// Close detaches the reader from the topic cache.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cache.UnregisterReader(r.topic, r.cacheID)
}

func (r *Reader) collect(max int, cond sample.ReadCondition, take bool) ([]*sample.DataSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("%w: reader is closed", ErrPreconditionNotMet)
	}

	r.tracker.Ingest(r.cache.GetChangesInRange(r.topic, r.tracker.Watermark(), rtps.Now()))
	r.tracker.Prune(func(ts rtps.Timestamp) bool {
		_, ok := r.cache.GetChange(r.topic, ts)
		return ok
	})

	selections := r.tracker.Select(max, cond, take)
	if len(selections) == 0 {
		return nil, nil
	}

	out := make([]*sample.DataSample, 0, len(selections))
	for _, sel := range selections {
		ch, ok := r.cache.GetChange(r.topic, sel.Timestamp)
		if !ok {
			// the writer evicted it between selection and decode
			continue
		}
		ds := &sample.DataSample{Info: sel.Info}
		switch ch.Payload.Kind {
		case cache.PayloadData:
			v, err := r.des.Deserialize(ch.Payload.Representation, ch.Payload.Bytes)
			if err != nil {
				r.log.Errorf("dropping undecodable sample from %s: %s", ch.WriterGUID, err)
				continue
			}
			ds.Value = v
			if len(ch.Key) > 0 {
				if k, err := r.des.DeserializeKey(ch.Payload.Representation, ch.Key); err == nil {
					ds.KeyValue = k
				}
			}
		case cache.PayloadKeyOnly:
			k, err := r.des.DeserializeKey(ch.Payload.Representation, ch.Payload.Bytes)
			if err != nil {
				r.log.Errorf("dropping undecodable key from %s: %s", ch.WriterGUID, err)
				continue
			}
			ds.KeyValue = k
		}
		if take {
			r.cache.MarkTaken(r.topic, sel.Timestamp, r.cacheID)
		}
		out = append(out, ds)
	}
	return out, nil
}
