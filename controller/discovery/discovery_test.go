package discovery

import (
	"testing"
	"time"

	"github.com/tarium/godds/pkg/cache"
	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
)

func shortConfig(guid rtps.GUID) Config {
	return Config{
		DomainID:                 0,
		ParticipantGUID:          guid,
		ParticipantInfoPeriod:    20 * time.Millisecond,
		ReadersInfoPeriod:        20 * time.Millisecond,
		WritersInfoPeriod:        20 * time.Millisecond,
		TopicInfoPeriod:          200 * time.Millisecond,
		ParticipantCleanupPeriod: 20 * time.Millisecond,
		TopicCleanupPeriod:       100 * time.Millisecond,
		LivelinessPeriod:         10 * time.Millisecond,
	}
}

func startDiscovery(t *testing.T, cfg Config) (*Discovery, *DB, *cache.DDSCache, *UpdateQueue, func()) {
	t.Helper()

	db := NewDB(testLog())
	ddsCache := cache.New(testLog())
	updates := NewUpdateQueue(1024, testLog())

	d := New(cfg, db, ddsCache, updates, testLog())
	done := make(chan struct{})
	go func() {
		d.Run()
		close(done)
	}()
	if err := <-d.Started(); err != nil {
		t.Fatalf("discovery failed to start: %s", err)
	}

	stop := func() {
		select {
		case d.Commands() <- Command{Kind: CommandStop}:
		case <-done:
		}
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("discovery did not stop")
		}
	}
	return d, db, ddsCache, updates, stop
}

func eventually(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartupCreatesBuiltinTopics(t *testing.T) {
	guid := rtps.NewGUID(rtps.NewGUIDPrefix(rtps.VendorUnknown), rtps.EntityParticipant)
	_, db, ddsCache, updates, stop := startDiscovery(t, shortConfig(guid))
	defer stop()

	for _, topic := range []string{
		ParticipantTopic, SubscriptionTopic, PublicationTopic, TopicTopic, ParticipantMessageTopic,
	} {
		if !ddsCache.HasTopic(topic) {
			t.Errorf("builtin topic %s missing", topic)
		}
	}

	// ten local builtin endpoints, none of them advertised as user
	// endpoints
	if n := len(db.LocalReaders()); n != 5 {
		t.Errorf("Expected 5 builtin readers, got %d", n)
	}
	if n := len(db.LocalWriters()); n != 5 {
		t.Errorf("Expected 5 builtin writers, got %d", n)
	}
	if n := len(db.LocalUserReaders()); n != 0 {
		t.Errorf("Expected no user readers, got %d", n)
	}
	if n := len(db.LocalUserWriters()); n != 0 {
		t.Errorf("Expected no user writers, got %d", n)
	}

	if locs := db.SPDPSeedLocators(); len(locs) != 1 || locs[0].Port != rtps.SPDPWellKnownMulticastPort(0) {
		t.Errorf("Expected the SPDP multicast seed locator, got %v", locs)
	}

	// startup announces writers needing a fresh cache change
	select {
	case got := <-updates.Updates():
		if got.Kind != WritersInfoUpdated || !got.NeedsNewCacheChange {
			t.Errorf("Expected WritersInfoUpdated{true} first, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Error("no startup notification")
	}
}

func TestParticipantInfoIsPublishedWithTripleLease(t *testing.T) {
	guid := rtps.NewGUID(rtps.NewGUIDPrefix(rtps.VendorUnknown), rtps.EntityParticipant)
	cfg := shortConfig(guid)
	_, db, _, _, stop := startDiscovery(t, cfg)
	defer stop()

	// our own announcement loops back through our own SPDP reader into
	// the DB
	eventually(t, time.Second, "self announcement", func() bool {
		return db.KnownParticipant(guid.Prefix)
	})

	participants := db.Participants()
	if len(participants) != 1 {
		t.Fatalf("Expected 1 participant, got %d", len(participants))
	}
	expected := rtps.DurationFrom(3 * cfg.ParticipantInfoPeriod)
	if participants[0].Data.LeaseDuration != expected {
		t.Fatalf("Expected lease %s (3x period), got %s", expected, participants[0].Data.LeaseDuration)
	}
}

func TestPublishedReaderInfoExcludesBuiltins(t *testing.T) {
	guid := rtps.NewGUID(rtps.NewGUIDPrefix(rtps.VendorUnknown), rtps.EntityParticipant)
	_, db, ddsCache, _, stop := startDiscovery(t, shortConfig(guid))
	defer stop()

	userGUID := rtps.NewGUID(guid.Prefix, rtps.NewUserReaderEntityID([3]byte{0, 0, 7}, true))
	db.AddLocalReader(DiscoveredReaderData{
		ReaderProxy: ReaderProxy{RemoteReaderGUID: userGUID},
		Subscription: SubscriptionBuiltinTopicData{
			Key:       userGUID,
			TopicName: "Square",
			TypeName:  "ShapeType",
		},
	})

	// the readers-info timer publishes the user reader on
	// DCPSSubscription and our own SEDP reader feeds it back into the DB;
	// wait for it there, then inspect the advertisements left in the cache
	eventually(t, time.Second, "user reader advertised and looped back", func() bool {
		_, known := db.ReaderState(userGUID)
		return known
	})

	// no builtin entity id may ever surface as an advertised endpoint
	for _, tc := range ddsCache.GetAllChanges(SubscriptionTopic) {
		if tc.Change.Kind != cache.Alive {
			continue
		}
		codec := readerDataCodec()
		v, err := codec.Deserialize(tc.Change.Payload.Representation, tc.Change.Payload.Bytes)
		if err != nil {
			t.Fatalf("undecodable advertisement: %s", err)
		}
		drd := v.(*DiscoveredReaderData)
		if drd.Subscription.Key.EntityID.IsBuiltinReader() {
			t.Fatalf("builtin reader %s advertised on DCPSSubscription", drd.Subscription.Key)
		}
	}
}

func TestStopDisposesParticipant(t *testing.T) {
	guid := rtps.NewGUID(rtps.NewGUIDPrefix(rtps.VendorUnknown), rtps.EntityParticipant)
	d, _, ddsCache, updates, _ := startDiscovery(t, shortConfig(guid))

	done := make(chan struct{})
	go func() {
		for range updates.Updates() {
		}
	}()

	d.Commands() <- Command{Kind: CommandStop}
	go func() {
		<-updates.Done()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update queue was not closed on stop")
	}

	// the participant's own dispose announcement is the last SPDP change
	all := ddsCache.GetAllChanges(ParticipantTopic)
	if len(all) == 0 {
		t.Fatal("expected SPDP changes")
	}
	last := all[len(all)-1].Change
	if last.Kind != cache.NotAliveDisposed {
		t.Fatalf("Expected a dispose change last, got %s", last.Kind)
	}
}

func TestManualLivelinessPacing(t *testing.T) {
	guid := rtps.NewGUID(rtps.NewGUIDPrefix(rtps.VendorUnknown), rtps.EntityParticipant)
	cfg := shortConfig(guid)
	d, db, _, _, stop := startDiscovery(t, cfg)
	defer stop()

	// a local writer asserting manual-by-participant liveliness with a
	// short lease
	writerGUID := rtps.NewGUID(guid.Prefix, rtps.NewUserWriterEntityID([3]byte{0, 0, 3}, true))
	db.AddLocalWriter(DiscoveredWriterData{
		WriterProxy: WriterProxy{RemoteWriterGUID: writerGUID},
		Publication: PublicationBuiltinTopicData{
			Key:       writerGUID,
			TopicName: "Square",
			TypeName:  "ShapeType",
			Qos: qos.NewBuilder().
				Liveliness(qos.Liveliness{Kind: qos.ManualByParticipant, LeaseDuration: rtps.DurationFrom(60 * time.Millisecond)}).
				Build(),
		},
	})

	// our own assertions loop back through our own message reader, so
	// the received-assertion counter observes every emission
	countManual := func() uint64 {
		return db.AssertionCount(guid.Prefix, LeaseManualByParticipant)
	}

	// refresh continuously: assertions must flow
	refreshTicker := time.NewTicker(15 * time.Millisecond)
	defer refreshTicker.Stop()
	refreshDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-refreshDone:
				return
			case <-refreshTicker.C:
				d.Commands() <- Command{Kind: CommandRefreshManualLiveliness}
			}
		}
	}()

	eventually(t, 2*time.Second, "at least 3 manual liveliness updates", func() bool {
		return countManual() >= 3
	})
	close(refreshDone)

	// once refreshes stop, emission must stop too
	time.Sleep(100 * time.Millisecond)
	base := countManual()
	time.Sleep(150 * time.Millisecond)
	if got := countManual(); got > base+1 {
		t.Fatalf("manual liveliness still emitted without refreshes: %d -> %d", base, got)
	}
}
