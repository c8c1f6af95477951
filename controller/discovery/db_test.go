package discovery

import (
	"testing"
	"time"

	"github.com/go-test/deep"
	logging "github.com/sirupsen/logrus"

	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
)

func testLog() *logging.Entry {
	logger := logging.New()
	logger.SetLevel(logging.PanicLevel)
	return logging.NewEntry(logger)
}

func participantData(prefix rtps.GUIDPrefix, lease rtps.Duration) *SPDPDiscoveredParticipantData {
	return &SPDPDiscoveredParticipantData{
		UpdatedTime:   rtps.Now(),
		GUID:          rtps.NewGUID(prefix, rtps.EntityParticipant),
		LeaseDuration: lease,
	}
}

func remoteReaderData(prefix rtps.GUIDPrefix, topic string, policies qos.Policies) *DiscoveredReaderData {
	guid := rtps.NewGUID(prefix, rtps.NewUserReaderEntityID([3]byte{0, 0, 9}, true))
	return &DiscoveredReaderData{
		ReaderProxy: ReaderProxy{RemoteReaderGUID: guid},
		Subscription: SubscriptionBuiltinTopicData{
			Key:            guid,
			ParticipantKey: rtps.NewGUID(prefix, rtps.EntityParticipant),
			TopicName:      topic,
			TypeName:       "ShapeType",
			Qos:            policies,
		},
	}
}

func remoteWriterData(prefix rtps.GUIDPrefix, topic string, policies qos.Policies) *DiscoveredWriterData {
	guid := rtps.NewGUID(prefix, rtps.NewUserWriterEntityID([3]byte{0, 0, 9}, true))
	return &DiscoveredWriterData{
		WriterProxy: WriterProxy{RemoteWriterGUID: guid},
		Publication: PublicationBuiltinTopicData{
			Key:            guid,
			ParticipantKey: rtps.NewGUID(prefix, rtps.EntityParticipant),
			TopicName:      topic,
			TypeName:       "ShapeType",
			Qos:            policies,
		},
	}
}

func localWriterData(prefix rtps.GUIDPrefix, topic string, policies qos.Policies) DiscoveredWriterData {
	guid := rtps.NewGUID(prefix, rtps.NewUserWriterEntityID([3]byte{0, 0, 1}, true))
	return DiscoveredWriterData{
		WriterProxy: WriterProxy{RemoteWriterGUID: guid},
		Publication: PublicationBuiltinTopicData{
			Key:            guid,
			ParticipantKey: rtps.NewGUID(prefix, rtps.EntityParticipant),
			TopicName:      topic,
			TypeName:       "ShapeType",
			Qos:            policies,
		},
	}
}

func TestUpdateParticipantDebounces(t *testing.T) {
	db := NewDB(testLog())
	prefix := rtps.GUIDPrefix{0xb0}

	if !db.UpdateParticipant(participantData(prefix, rtps.DurationFrom(6*time.Second))) {
		t.Fatal("first update must report a change")
	}
	if db.UpdateParticipant(participantData(prefix, rtps.DurationFrom(6*time.Second))) {
		t.Fatal("identical refresh must not report a change")
	}
	if !db.UpdateParticipant(participantData(prefix, rtps.DurationFrom(10*time.Second))) {
		t.Fatal("lease change must report a change")
	}
	if !db.KnownParticipant(prefix) {
		t.Fatal("participant should be known")
	}
}

func TestParticipantCleanupSoundness(t *testing.T) {
	db := NewDB(testLog())
	prefix := rtps.GUIDPrefix{0xb1}

	db.AddLocalWriter(localWriterData(rtps.GUIDPrefix{0x01}, "Square", qos.Policies{}))
	db.AddLocalReader(DiscoveredReaderData{
		ReaderProxy: ReaderProxy{},
		Subscription: SubscriptionBuiltinTopicData{
			Key:       rtps.NewGUID(rtps.GUIDPrefix{0x01}, rtps.NewUserReaderEntityID([3]byte{0, 0, 1}, true)),
			TopicName: "Square",
			TypeName:  "ShapeType",
		},
	})

	lease := rtps.DurationFrom(50 * time.Millisecond)
	db.UpdateParticipant(participantData(prefix, lease))
	rdr := remoteReaderData(prefix, "Square", qos.Policies{})
	wtr := remoteWriterData(prefix, "Square", qos.Policies{})
	db.UpdateSubscription(rdr)
	db.UpdatePublication(wtr)

	if state, _ := db.ReaderState(rdr.Subscription.Key); state != StateMatched {
		t.Fatalf("Expected matched remote reader, got %s", state)
	}

	// before the lease lapses nothing expires
	if expired := db.ParticipantCleanup(rtps.Now()); len(expired) != 0 {
		t.Fatalf("Expected no expiries inside the lease, got %v", expired)
	}

	// after the lease lapses the participant and both endpoints go
	// together
	late := rtps.Now().Add(rtps.DurationFrom(100 * time.Millisecond))
	expired := db.ParticipantCleanup(late)
	if len(expired) != 1 || expired[0] != prefix {
		t.Fatalf("Expected exactly %s to expire, got %v", prefix, expired)
	}
	if db.KnownParticipant(prefix) {
		t.Fatal("expired participant still known")
	}
	if state, _ := db.ReaderState(rdr.Subscription.Key); state != StateExpired {
		t.Fatalf("Expected expired remote reader, got %s", state)
	}
	if state, _ := db.WriterState(wtr.Publication.Key); state != StateExpired {
		t.Fatalf("Expected expired remote writer, got %s", state)
	}
}

func TestIncompatibleQosIsRecordedNotMatched(t *testing.T) {
	db := NewDB(testLog())
	prefix := rtps.GUIDPrefix{0xb2}

	// local writer offers best effort
	db.AddLocalWriter(localWriterData(rtps.GUIDPrefix{0x01}, "Square",
		qos.NewBuilder().Reliability(qos.Reliability{Kind: qos.BestEffort}).Build()))

	// remote reader requests reliable
	rdr := remoteReaderData(prefix, "Square",
		qos.NewBuilder().Reliability(qos.Reliability{Kind: qos.Reliable}).Build())
	db.UpdateSubscription(rdr)

	state, known := db.ReaderState(rdr.Subscription.Key)
	if !known {
		t.Fatal("remote reader should be recorded")
	}
	if state == StateMatched {
		t.Fatal("incompatible endpoints must not match")
	}
	incompat := db.Incompatibility(rdr.Subscription.Key)
	if incompat == nil || incompat.Policy != "reliability" {
		t.Fatalf("Expected a reliability incompatibility, got %v", incompat)
	}
	if db.IncompatibleQosCount() == 0 {
		t.Fatal("incompatible QoS occurrences must be observable")
	}
	if db.EndpointChangeCounter(rdr.Subscription.Key) == 0 {
		t.Fatal("change counter must advance even without a match")
	}
}

func TestEndpointStateMachine(t *testing.T) {
	db := NewDB(testLog())
	prefix := rtps.GUIDPrefix{0xb3}

	db.AddLocalWriter(localWriterData(rtps.GUIDPrefix{0x01}, "Square", qos.Policies{}))
	rdr := remoteReaderData(prefix, "Square", qos.Policies{})

	// Unknown -> Matched
	db.UpdateSubscription(rdr)
	if state, _ := db.ReaderState(rdr.Subscription.Key); state != StateMatched {
		t.Fatalf("Expected Matched, got %s", state)
	}

	// Matched -> Disposed
	if !db.RemoveTopicReader(rdr.Subscription.Key) {
		t.Fatal("dispose should report a change")
	}
	if state, _ := db.ReaderState(rdr.Subscription.Key); state != StateDisposed {
		t.Fatalf("Expected Disposed, got %s", state)
	}
	if db.RemoveTopicReader(rdr.Subscription.Key) {
		t.Fatal("second dispose must not report a change")
	}

	// Disposed -> Matched on rediscovery
	if !db.UpdateSubscription(rdr) {
		t.Fatal("rediscovery should report a change")
	}
	if state, _ := db.ReaderState(rdr.Subscription.Key); state != StateMatched {
		t.Fatalf("Expected re-matched, got %s", state)
	}
}

func TestLocalUserEndpointsExcludeBuiltins(t *testing.T) {
	db := NewDB(testLog())
	prefix := rtps.GUIDPrefix{0x01}

	builtinReaders := []rtps.EntityID{
		rtps.EntitySPDPParticipantReader,
		rtps.EntitySEDPSubscriptionsReader,
		rtps.EntitySEDPPublicationsReader,
		rtps.EntitySEDPTopicReader,
		rtps.EntityP2PParticipantMessageReader,
	}
	for _, e := range builtinReaders {
		guid := rtps.NewGUID(prefix, e)
		db.AddLocalReader(DiscoveredReaderData{
			Subscription: SubscriptionBuiltinTopicData{Key: guid, TopicName: "builtin"},
		})
	}
	userGUID := rtps.NewGUID(prefix, rtps.NewUserReaderEntityID([3]byte{0, 0, 1}, true))
	db.AddLocalReader(DiscoveredReaderData{
		Subscription: SubscriptionBuiltinTopicData{Key: userGUID, TopicName: "Square"},
	})

	user := db.LocalUserReaders()
	if len(user) != 1 {
		t.Fatalf("Expected exactly 1 user reader, got %d", len(user))
	}
	if user[0].Subscription.Key != userGUID {
		t.Fatalf("Expected %s, got %s", userGUID, user[0].Subscription.Key)
	}
	if len(db.LocalReaders()) != 6 {
		t.Fatalf("Expected 6 local readers total, got %d", len(db.LocalReaders()))
	}
}

func TestTopicCleanupRemovesUnreferenced(t *testing.T) {
	db := NewDB(testLog())

	db.UpdateTopicData(&DiscoveredTopicData{Topic: TopicBuiltinTopicData{Name: "Orphan", TypeName: "T"}})
	db.UpdateTopicData(&DiscoveredTopicData{Topic: TopicBuiltinTopicData{Name: "Square", TypeName: "ShapeType"}})
	db.AddLocalWriter(localWriterData(rtps.GUIDPrefix{0x01}, "Square", qos.Policies{}))

	removed := db.TopicCleanup()
	if len(removed) != 1 || removed[0] != "Orphan" {
		t.Fatalf("Expected only Orphan removed, got %v", removed)
	}
	if len(db.Topics()) != 1 {
		t.Fatalf("Expected 1 remaining topic, got %d", len(db.Topics()))
	}
}

func TestLeaseTracking(t *testing.T) {
	db := NewDB(testLog())
	prefix := rtps.GUIDPrefix{0xb4}

	db.UpdateLease(&ParticipantMessageData{GuidPrefix: prefix, Kind: ParticipantMessageManualLivelinessUpdate})
	if _, ok := db.LastLease(prefix, LeaseManualByParticipant); !ok {
		t.Fatal("manual lease should be recorded")
	}
	if _, ok := db.LastLease(prefix, LeaseAutomatic); ok {
		t.Fatal("automatic lease should not be recorded by a manual assertion")
	}
}

func TestExpiredWriterLeases(t *testing.T) {
	db := NewDB(testLog())
	prefix := rtps.GUIDPrefix{0xb5}

	db.AddLocalReader(DiscoveredReaderData{
		Subscription: SubscriptionBuiltinTopicData{
			Key:       rtps.NewGUID(rtps.GUIDPrefix{0x01}, rtps.NewUserReaderEntityID([3]byte{0, 0, 1}, true)),
			TopicName: "Square",
			TypeName:  "ShapeType",
		},
	})

	lease := rtps.DurationFrom(50 * time.Millisecond)
	wtr := remoteWriterData(prefix, "Square",
		qos.NewBuilder().Liveliness(qos.Liveliness{Kind: qos.ManualByParticipant, LeaseDuration: lease}).Build())
	db.UpdatePublication(wtr)
	db.UpdateLease(&ParticipantMessageData{GuidPrefix: prefix, Kind: ParticipantMessageManualLivelinessUpdate})

	if lost := db.ExpiredWriterLeases(rtps.Now()); len(lost) != 0 {
		t.Fatalf("Expected no losses inside the lease, got %v", lost)
	}

	late := rtps.Now().Add(rtps.DurationFrom(100 * time.Millisecond))
	lost := db.ExpiredWriterLeases(late)
	if len(lost) != 1 || lost[0] != wtr.Publication.Key {
		t.Fatalf("Expected %s to lose liveliness, got %v", wtr.Publication.Key, lost)
	}
}

func TestMinLivelinessLease(t *testing.T) {
	db := NewDB(testLog())

	if _, ok := db.MinLivelinessLease(qos.Automatic); ok {
		t.Fatal("no writers means no lease")
	}

	db.AddLocalWriter(localWriterData(rtps.GUIDPrefix{0x01}, "A",
		qos.NewBuilder().Liveliness(qos.Liveliness{Kind: qos.Automatic, LeaseDuration: rtps.DurationFrom(3 * time.Second)}).Build()))

	other := localWriterData(rtps.GUIDPrefix{0x02}, "B",
		qos.NewBuilder().Liveliness(qos.Liveliness{Kind: qos.Automatic, LeaseDuration: rtps.DurationFrom(time.Second)}).Build())
	db.AddLocalWriter(other)

	min, ok := db.MinLivelinessLease(qos.Automatic)
	if !ok || min != rtps.DurationFrom(time.Second) {
		t.Fatalf("Expected min lease 1s, got %s (%v)", min, ok)
	}
	if _, ok := db.MinLivelinessLease(qos.ManualByParticipant); ok {
		t.Fatal("no manual writers means no manual lease")
	}
}

func TestDiscoveredReaderDataCodecRoundTrip(t *testing.T) {
	codec := readerDataCodec()
	original := remoteReaderData(rtps.GUIDPrefix{0xb6}, "Square",
		qos.NewBuilder().
			Reliability(qos.Reliability{Kind: qos.Reliable, MaxBlockingTime: rtps.DurationFrom(100 * time.Millisecond)}).
			Durability(qos.TransientLocal).
			Build())

	payload, _, err := codec.Serialize(original)
	if err != nil {
		t.Fatalf("Serialize returned an error: %s", err)
	}
	decoded, err := codec.Deserialize(codec.Representation(), payload)
	if err != nil {
		t.Fatalf("Deserialize returned an error: %s", err)
	}
	if diff := deep.Equal(original, decoded); diff != nil {
		t.Fatalf("round trip mismatch: %v", diff)
	}

	// feeding the decoded record through the DB reproduces an equivalent
	// entry
	db := NewDB(testLog())
	db.UpdateSubscription(decoded.(*DiscoveredReaderData))
	if _, known := db.ReaderState(original.Subscription.Key); !known {
		t.Fatal("decoded advertisement should be recorded under the original key")
	}
}
