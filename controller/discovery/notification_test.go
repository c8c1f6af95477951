package discovery

import (
	"testing"

	"github.com/tarium/godds/pkg/rtps"
)

func TestUpdateQueueDeliversInOrder(t *testing.T) {
	q := NewUpdateQueue(4, testLog())

	writerGUID := rtps.NewGUID(rtps.GUIDPrefix{0x01}, rtps.NewUserWriterEntityID([3]byte{0, 0, 1}, true))
	sent := []DataUpdate{
		{Kind: ReadersInfoUpdated},
		{Kind: WritersInfoUpdated, NeedsNewCacheChange: true},
		{Kind: TopicsInfoUpdated},
		{Kind: AssertTopicLiveliness, WriterGUID: writerGUID},
	}
	for _, u := range sent {
		if !q.Enqueue(u) {
			t.Fatalf("Enqueue of %s failed on a non-full queue", u.Kind)
		}
	}

	for i, expected := range sent {
		got := <-q.Updates()
		if got != expected {
			t.Fatalf("update %d: Expected %+v, got %+v", i, expected, got)
		}
	}
}

func TestUpdateQueueNeverBlocksOnOverflow(t *testing.T) {
	q := NewUpdateQueue(2, testLog())

	if !q.Enqueue(DataUpdate{Kind: ReadersInfoUpdated}) {
		t.Fatal("first enqueue failed")
	}
	if !q.Enqueue(DataUpdate{Kind: ReadersInfoUpdated}) {
		t.Fatal("second enqueue failed")
	}
	// the queue is full and nobody is draining; this must return, not
	// block
	if q.Enqueue(DataUpdate{Kind: TopicsInfoUpdated}) {
		t.Fatal("overflowing enqueue should report the drop")
	}

	// earlier updates are still deliverable
	got := <-q.Updates()
	if got.Kind != ReadersInfoUpdated {
		t.Fatalf("Expected ReadersInfoUpdated, got %s", got.Kind)
	}
}

func TestUpdateQueueCloseRejectsNewUpdates(t *testing.T) {
	q := NewUpdateQueue(2, testLog())
	q.Enqueue(DataUpdate{Kind: ReadersInfoUpdated})
	q.Close()

	if q.Enqueue(DataUpdate{Kind: ReadersInfoUpdated}) {
		t.Fatal("enqueue after close should fail")
	}
	select {
	case <-q.Done():
	default:
		t.Fatal("Done should be closed")
	}
	// pending updates stay readable after close
	if got := <-q.Updates(); got.Kind != ReadersInfoUpdated {
		t.Fatalf("Expected pending update after close, got %s", got.Kind)
	}
}
