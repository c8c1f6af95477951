package discovery

import (
	"fmt"
	"time"

	logging "github.com/sirupsen/logrus"

	"github.com/tarium/godds/pkg/cache"
	"github.com/tarium/godds/pkg/endpoint"
	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
	"github.com/tarium/godds/pkg/sample"
)

// CommandKind tags the requests the application may send to the running
// discovery loop. The loop owns the local endpoint tables; this channel
// is the only way other threads mutate discovery state.
type CommandKind int

const (
	CommandStop CommandKind = iota
	CommandRemoveLocalWriter
	CommandRemoveLocalReader
	CommandRefreshManualLiveliness
	CommandAssertTopicLiveliness
)

// Command is one control request.
type Command struct {
	Kind CommandKind
	GUID rtps.GUID
}

// Default timer periods, matching the SPDP/SEDP cadences of the wire
// protocol.
const (
	DefaultParticipantInfoPeriod    = 2 * time.Second
	DefaultReadersInfoPeriod        = 2 * time.Second
	DefaultWritersInfoPeriod        = 2 * time.Second
	DefaultTopicInfoPeriod          = 20 * time.Second
	DefaultParticipantCleanupPeriod = 2 * time.Second
	DefaultTopicCleanupPeriod       = 10 * time.Second
	DefaultLivelinessPeriod         = 1 * time.Second
)

// Config parameterizes a discovery loop. Zero periods fall back to the
// defaults; tests shorten them.
type Config struct {
	DomainID        uint16
	ParticipantID   uint16
	ParticipantGUID rtps.GUID

	MetatrafficUnicastLocators   []rtps.Locator
	MetatrafficMulticastLocators []rtps.Locator
	DefaultUnicastLocators       []rtps.Locator
	DefaultMulticastLocators     []rtps.Locator

	ParticipantInfoPeriod    time.Duration
	ReadersInfoPeriod        time.Duration
	WritersInfoPeriod        time.Duration
	TopicInfoPeriod          time.Duration
	ParticipantCleanupPeriod time.Duration
	TopicCleanupPeriod       time.Duration
	LivelinessPeriod         time.Duration

	// OnRemoteWriterLost is invoked from the loop when a matched remote
	// writer's liveliness lease lapses.
	OnRemoteWriterLost func(rtps.GUID)

	// OnReaderCreated exposes each built-in reader's wakeup trigger so
	// the transport can signal inbound discovery traffic.
	OnReaderCreated func(topic string, notify func())
}

func (c *Config) applyDefaults() {
	if c.ParticipantInfoPeriod == 0 {
		c.ParticipantInfoPeriod = DefaultParticipantInfoPeriod
	}
	if c.ReadersInfoPeriod == 0 {
		c.ReadersInfoPeriod = DefaultReadersInfoPeriod
	}
	if c.WritersInfoPeriod == 0 {
		c.WritersInfoPeriod = DefaultWritersInfoPeriod
	}
	if c.TopicInfoPeriod == 0 {
		c.TopicInfoPeriod = DefaultTopicInfoPeriod
	}
	if c.ParticipantCleanupPeriod == 0 {
		c.ParticipantCleanupPeriod = DefaultParticipantCleanupPeriod
	}
	if c.TopicCleanupPeriod == 0 {
		c.TopicCleanupPeriod = DefaultTopicCleanupPeriod
	}
	if c.LivelinessPeriod == 0 {
		c.LivelinessPeriod = DefaultLivelinessPeriod
	}
}

// Discovery is the event-driven state machine operating the built-in
// topics. It runs as a single goroutine; everything it shares with the
// rest of the process goes through the DB, the cache, the command
// channel, and the update queue.
type Discovery struct {
	cfg Config

	db      *DB
	cache   *cache.DDSCache
	updates *UpdateQueue

	commands chan Command
	started  chan error

	participantReader  *endpoint.Reader
	participantWriter  *endpoint.Writer
	subscriptionReader *endpoint.Reader
	subscriptionWriter *endpoint.Writer
	publicationReader  *endpoint.Reader
	publicationWriter  *endpoint.Writer
	topicReader        *endpoint.Reader
	topicWriter        *endpoint.Writer
	messageReader      *endpoint.Reader
	messageWriter      *endpoint.Writer

	lastAutoEmit      rtps.Timestamp
	lastManualEmit    rtps.Timestamp
	lastManualRefresh rtps.Timestamp

	log *logging.Entry
}

// New prepares a discovery loop. Call Run on its own goroutine and wait
// on Started for the startup outcome.
func New(cfg Config, db *DB, ddsCache *cache.DDSCache, updates *UpdateQueue, log *logging.Entry) *Discovery {
	cfg.applyDefaults()
	return &Discovery{
		cfg:      cfg,
		db:       db,
		cache:    ddsCache,
		updates:  updates,
		commands: make(chan Command, 16),
		started:  make(chan error, 1),
		log: log.WithFields(logging.Fields{
			"component": "discovery",
			"domain":    cfg.DomainID,
		}),
	}
}

// Commands is the control channel of the running loop.
func (d *Discovery) Commands() chan<- Command {
	return d.commands
}

// Started delivers exactly one startup result: nil once the loop is
// dispatching, or the error that prevented it from starting.
func (d *Discovery) Started() <-chan error {
	return d.started
}

// spdpQos is the DCPSParticipant topic QoS: best effort, last sample
// only.
func spdpQos() qos.Policies {
	return qos.NewBuilder().
		Reliability(qos.Reliability{Kind: qos.BestEffort}).
		History(qos.History{Kind: qos.KeepLast, Depth: 1}).
		Build()
}

// sedpQos is the QoS of the SEDP built-in endpoints: reliable with
// transient-local durability so late joiners see earlier advertisements.
// History keeps the latest advertisement per endpoint instance; the
// built-in readers read with a not-read condition instead of taking, so
// the retained change stays available to the transport and to late
// joiners.
func sedpQos() qos.Policies {
	return qos.NewBuilder().
		Durability(qos.TransientLocal).
		Presentation(qos.Presentation{AccessScope: qos.AccessScopeTopic}).
		Deadline(qos.Deadline(rtps.DurationInfinite)).
		Ownership(qos.Shared).
		Liveliness(qos.Liveliness{Kind: qos.Automatic, LeaseDuration: rtps.DurationInfinite}).
		TimeBasedFilter(qos.TimeBasedFilter(rtps.DurationZero)).
		Reliability(qos.Reliability{Kind: qos.Reliable, MaxBlockingTime: rtps.DurationFrom(100 * time.Millisecond)}).
		DestinationOrder(qos.ByReceptionTimestamp).
		History(qos.History{Kind: qos.KeepLast, Depth: 1}).
		Build()
}

// participantMessageQos is the DCPSParticipantMessage topic QoS, RTPS
// 8.4.13.3.
func participantMessageQos() qos.Policies {
	return qos.NewBuilder().
		Durability(qos.TransientLocal).
		Reliability(qos.Reliability{Kind: qos.Reliable, MaxBlockingTime: rtps.DurationZero}).
		History(qos.History{Kind: qos.KeepLast, Depth: 1}).
		Build()
}

// Run executes the discovery loop until a STOP command arrives. It
// reports startup success or failure on the Started channel exactly once.
func (d *Discovery) Run() {
	if err := d.startup(); err != nil {
		d.log.Errorf("discovery startup failed: %s", err)
		d.started <- err
		return
	}
	d.started <- nil

	participantTicker := time.NewTicker(d.cfg.ParticipantInfoPeriod)
	defer participantTicker.Stop()
	readersTicker := time.NewTicker(d.cfg.ReadersInfoPeriod)
	defer readersTicker.Stop()
	writersTicker := time.NewTicker(d.cfg.WritersInfoPeriod)
	defer writersTicker.Stop()
	topicTicker := time.NewTicker(d.cfg.TopicInfoPeriod)
	defer topicTicker.Stop()
	participantCleanupTicker := time.NewTicker(d.cfg.ParticipantCleanupPeriod)
	defer participantCleanupTicker.Stop()
	topicCleanupTicker := time.NewTicker(d.cfg.TopicCleanupPeriod)
	defer topicCleanupTicker.Stop()
	livelinessTicker := time.NewTicker(d.cfg.LivelinessPeriod)
	defer livelinessTicker.Stop()

	for {
		select {
		case cmd := <-d.commands:
			if stop := d.handleCommand(cmd); stop {
				return
			}
		case <-d.participantReader.Wakeup():
			d.handleParticipantReader()
		case <-d.subscriptionReader.Wakeup():
			d.handleSubscriptionReader()
		case <-d.publicationReader.Wakeup():
			d.handlePublicationReader()
		case <-d.topicReader.Wakeup():
			d.handleTopicReader()
		case <-d.messageReader.Wakeup():
			d.handleParticipantMessageReader()
		case <-participantTicker.C:
			d.writeParticipantInfo()
		case <-readersTicker.C:
			if d.db.IsReadersChanged() {
				d.db.SetReadersChanged(false)
				d.writeReadersInfo()
			}
		case <-writersTicker.C:
			if d.db.IsWritersChanged() {
				d.db.SetWritersChanged(false)
				d.writeWritersInfo()
			}
		case <-topicTicker.C:
			d.writeTopicInfo()
		case <-participantCleanupTicker.C:
			d.participantCleanup()
		case <-topicCleanupTicker.C:
			d.db.TopicCleanup()
		case <-livelinessTicker.C:
			d.writeParticipantMessage()
			d.checkRemoteLiveliness()
		}
	}
}

// startup creates the built-in topics and endpoints, registers them
// locally, and seeds the SPDP locator.
func (d *Discovery) startup() error {
	prefix := d.cfg.ParticipantGUID.Prefix

	type builtin struct {
		topic    string
		typeName string
		policies qos.Policies
		codec    *builtinCodec
		readerID rtps.EntityID
		writerID rtps.EntityID
		reader   **endpoint.Reader
		writer   **endpoint.Writer
	}
	builtins := []builtin{
		{ParticipantTopic, ParticipantTypeName, spdpQos(), participantCodec(),
			rtps.EntitySPDPParticipantReader, rtps.EntitySPDPParticipantWriter,
			&d.participantReader, &d.participantWriter},
		{SubscriptionTopic, SubscriptionTypeName, sedpQos(), readerDataCodec(),
			rtps.EntitySEDPSubscriptionsReader, rtps.EntitySEDPSubscriptionsWriter,
			&d.subscriptionReader, &d.subscriptionWriter},
		{PublicationTopic, PublicationTypeName, sedpQos(), writerDataCodec(),
			rtps.EntitySEDPPublicationsReader, rtps.EntitySEDPPublicationsWriter,
			&d.publicationReader, &d.publicationWriter},
		{TopicTopic, TopicTypeName, qos.NewBuilder().Build(), topicDataCodec(),
			rtps.EntitySEDPTopicReader, rtps.EntitySEDPTopicWriter,
			&d.topicReader, &d.topicWriter},
		{ParticipantMessageTopic, ParticipantMessageTypeName, participantMessageQos(), participantMessageCodec(),
			rtps.EntityP2PParticipantMessageReader, rtps.EntityP2PParticipantMessageWriter,
			&d.messageReader, &d.messageWriter},
	}

	for i := range builtins {
		b := &builtins[i]
		d.cache.AddTopic(b.topic, cache.WithKey, cache.TypeDesc(b.typeName))
		d.cache.SetTopicQos(b.topic, b.policies)

		reader, err := endpoint.NewReader(
			rtps.NewGUID(prefix, b.readerID), b.topic, b.policies, d.cache, b.codec, d.log)
		if err != nil {
			return fmt.Errorf("creating %s reader: %w", b.topic, err)
		}
		writer, err := endpoint.NewWriter(
			rtps.NewGUID(prefix, b.writerID), b.topic, b.policies, d.cache, b.codec,
			reader.Notify, d.log)
		if err != nil {
			return fmt.Errorf("creating %s writer: %w", b.topic, err)
		}
		*b.reader = reader
		*b.writer = writer
		if d.cfg.OnReaderCreated != nil {
			d.cfg.OnReaderCreated(b.topic, reader.Notify)
		}

		d.db.AddLocalReader(DiscoveredReaderData{
			ReaderProxy: ReaderProxy{RemoteReaderGUID: reader.GUID()},
			Subscription: SubscriptionBuiltinTopicData{
				Key:            reader.GUID(),
				ParticipantKey: d.cfg.ParticipantGUID,
				TopicName:      b.topic,
				TypeName:       b.typeName,
				Qos:            b.policies,
			},
		})
		d.db.AddLocalWriter(DiscoveredWriterData{
			WriterProxy: WriterProxy{RemoteWriterGUID: writer.GUID()},
			Publication: PublicationBuiltinTopicData{
				Key:            writer.GUID(),
				ParticipantKey: d.cfg.ParticipantGUID,
				TopicName:      b.topic,
				TypeName:       b.typeName,
				Qos:            b.policies,
			},
		})
	}

	d.db.SeedSPDPLocator(rtps.SPDPMulticastLocator(d.cfg.DomainID))
	d.db.SetReadersChanged(false)
	d.db.SetWritersChanged(false)

	now := rtps.Now()
	d.lastAutoEmit = now
	d.lastManualEmit = now
	d.lastManualRefresh = now

	d.notify(DataUpdate{Kind: WritersInfoUpdated, NeedsNewCacheChange: true})
	return nil
}

// handleCommand processes one control request; true means the loop must
// exit.
func (d *Discovery) handleCommand(cmd Command) bool {
	switch cmd.Kind {
	case CommandStop:
		d.log.Info("stopping discovery")
		d.shutdown()
		return true
	case CommandRemoveLocalWriter:
		if cmd.GUID == d.publicationWriter.GUID() {
			return false
		}
		if err := d.publicationWriter.Dispose(cmd.GUID); err != nil {
			d.log.Errorf("disposing writer %s: %s", cmd.GUID, err)
		}
		d.db.RemoveLocalWriter(cmd.GUID)
	case CommandRemoveLocalReader:
		if cmd.GUID == d.subscriptionWriter.GUID() {
			return false
		}
		if err := d.subscriptionWriter.Dispose(cmd.GUID); err != nil {
			d.log.Errorf("disposing reader %s: %s", cmd.GUID, err)
		}
		d.db.RemoveLocalReader(cmd.GUID)
	case CommandRefreshManualLiveliness:
		d.lastManualRefresh = rtps.Now()
	case CommandAssertTopicLiveliness:
		d.notify(DataUpdate{Kind: AssertTopicLiveliness, WriterGUID: cmd.GUID})
	}
	return false
}

// shutdown disposes every local user endpoint and finally the
// participant itself, so remote peers observe a clean departure.
func (d *Discovery) shutdown() {
	for _, r := range d.db.LocalUserReaders() {
		if err := d.subscriptionWriter.Dispose(r.Subscription.Key); err != nil {
			d.log.Errorf("disposing reader %s on shutdown: %s", r.Subscription.Key, err)
		}
	}
	for _, w := range d.db.LocalUserWriters() {
		if err := d.publicationWriter.Dispose(w.Publication.Key); err != nil {
			d.log.Errorf("disposing writer %s on shutdown: %s", w.Publication.Key, err)
		}
	}
	if err := d.participantWriter.Dispose(d.cfg.ParticipantGUID); err != nil {
		d.log.Errorf("disposing participant on shutdown: %s", err)
	}
	d.updates.Close()
}

////////////////
/// handlers ///
////////////////

func (d *Discovery) handleParticipantReader() {
	samples, err := d.participantReader.Read(100, sample.NotReadCondition())
	if err != nil {
		d.log.Errorf("reading participant samples: %s", err)
		return
	}
	for _, s := range samples {
		if !s.Valid() {
			// participant disposed itself
			key, ok := s.KeyValue.(*rtps.GUID)
			if !ok {
				continue
			}
			if removed, _, _ := d.db.RemoveParticipant(key.Prefix, false); removed {
				d.notify(DataUpdate{Kind: WritersInfoUpdated})
				d.notify(DataUpdate{Kind: ReadersInfoUpdated})
			}
			continue
		}
		data, ok := s.Value.(*SPDPDiscoveredParticipantData)
		if !ok {
			d.log.Errorf("unexpected participant sample type %T", s.Value)
			continue
		}
		if d.db.UpdateParticipant(data) {
			d.notify(DataUpdate{Kind: WritersInfoUpdated})
			d.notify(DataUpdate{Kind: ReadersInfoUpdated})
			// answer promptly so the new peer learns us before the next
			// timer tick
			d.writeParticipantInfo()
			d.notify(DataUpdate{Kind: WritersInfoUpdated, NeedsNewCacheChange: true})
		}
	}
}

func (d *Discovery) handleSubscriptionReader() {
	samples, err := d.subscriptionReader.Read(100, sample.NotReadCondition())
	if err != nil {
		d.log.Errorf("reading subscription samples: %s", err)
		return
	}
	for _, s := range samples {
		if s.Valid() {
			data, ok := s.Value.(*DiscoveredReaderData)
			if !ok {
				d.log.Errorf("unexpected subscription sample type %T", s.Value)
				continue
			}
			d.db.UpdateSubscription(data)
			d.notify(DataUpdate{Kind: WritersInfoUpdated, NeedsNewCacheChange: true})
			d.db.UpdateTopicData(&DiscoveredTopicData{
				UpdatedTime: rtps.Now(),
				Topic: TopicBuiltinTopicData{
					Name:     data.Subscription.TopicName,
					TypeName: data.Subscription.TypeName,
					Qos:      data.Subscription.Qos,
				},
			})
			continue
		}
		key, ok := s.KeyValue.(*rtps.GUID)
		if !ok {
			continue
		}
		if d.db.RemoveTopicReader(*key) {
			d.notify(DataUpdate{Kind: WritersInfoUpdated})
		}
	}
}

func (d *Discovery) handlePublicationReader() {
	samples, err := d.publicationReader.Read(100, sample.NotReadCondition())
	if err != nil {
		d.log.Errorf("reading publication samples: %s", err)
		return
	}
	for _, s := range samples {
		if s.Valid() {
			data, ok := s.Value.(*DiscoveredWriterData)
			if !ok {
				d.log.Errorf("unexpected publication sample type %T", s.Value)
				continue
			}
			d.db.UpdatePublication(data)
			d.notify(DataUpdate{Kind: ReadersInfoUpdated})
			d.db.UpdateTopicData(&DiscoveredTopicData{
				UpdatedTime: rtps.Now(),
				Topic: TopicBuiltinTopicData{
					Name:     data.Publication.TopicName,
					TypeName: data.Publication.TypeName,
					Qos:      data.Publication.Qos,
				},
			})
			continue
		}
		key, ok := s.KeyValue.(*rtps.GUID)
		if !ok {
			continue
		}
		if d.db.RemoveTopicWriter(*key) {
			d.notify(DataUpdate{Kind: ReadersInfoUpdated})
		}
	}
}

func (d *Discovery) handleTopicReader() {
	samples, err := d.topicReader.Read(100, sample.NotReadCondition())
	if err != nil {
		d.log.Errorf("reading topic samples: %s", err)
		return
	}
	for _, s := range samples {
		if !s.Valid() {
			continue
		}
		data, ok := s.Value.(*DiscoveredTopicData)
		if !ok {
			d.log.Errorf("unexpected topic sample type %T", s.Value)
			continue
		}
		if d.db.UpdateTopicData(data) {
			d.notify(DataUpdate{Kind: TopicsInfoUpdated})
		}
	}
}

func (d *Discovery) handleParticipantMessageReader() {
	samples, err := d.messageReader.Read(100, sample.NotReadCondition())
	if err != nil {
		d.log.Errorf("reading participant messages: %s", err)
		return
	}
	for _, s := range samples {
		if !s.Valid() {
			continue
		}
		msg, ok := s.Value.(*ParticipantMessageData)
		if !ok {
			d.log.Errorf("unexpected participant message type %T", s.Value)
			continue
		}
		d.db.UpdateLease(msg)
	}
}

///////////////
/// writers ///
///////////////

// writeParticipantInfo publishes our SPDP record. The lease is three
// announcement periods so a single missed send does not expire us.
func (d *Discovery) writeParticipantInfo() {
	data := &SPDPDiscoveredParticipantData{
		UpdatedTime:                  rtps.Now(),
		GUID:                         d.cfg.ParticipantGUID,
		ProtocolVersion:              [2]byte{2, 3},
		VendorID:                     rtps.VendorUnknown,
		MetatrafficUnicastLocators:   d.cfg.MetatrafficUnicastLocators,
		MetatrafficMulticastLocators: d.cfg.MetatrafficMulticastLocators,
		DefaultUnicastLocators:       d.cfg.DefaultUnicastLocators,
		DefaultMulticastLocators:     d.cfg.DefaultMulticastLocators,
		LeaseDuration:                rtps.DurationFrom(3 * d.cfg.ParticipantInfoPeriod),
	}
	if err := d.participantWriter.Write(data); err != nil {
		d.log.Errorf("writing participant info: %s", err)
	}
}

func (d *Discovery) writeReadersInfo() {
	for _, data := range d.db.LocalUserReaders() {
		data := data
		if err := d.subscriptionWriter.Write(&data); err != nil {
			d.log.Errorf("writing reader info for %s: %s", data.Subscription.Key, err)
		}
	}
}

func (d *Discovery) writeWritersInfo() {
	for _, data := range d.db.LocalUserWriters() {
		data := data
		if err := d.publicationWriter.Write(&data); err != nil {
			d.log.Errorf("writing writer info for %s: %s", data.Publication.Key, err)
		}
	}
}

func (d *Discovery) writeTopicInfo() {
	for _, data := range d.db.Topics() {
		data := data
		if err := d.topicWriter.Write(&data); err != nil {
			d.log.Errorf("writing topic info for %s: %s", data.Topic.Name, err)
		}
	}
}

// writeParticipantMessage asserts participant-level liveliness: an
// AUTOMATIC assertion whenever a third of the smallest automatic lease
// has passed since the last one, and a MANUAL assertion on the same
// pacing but only if the application refreshed since the last emission.
func (d *Discovery) writeParticipantMessage() {
	now := rtps.Now()

	if min, ok := d.db.MinLivelinessLease(qos.Automatic); ok {
		if now.Sub(d.lastAutoEmit) > min/3 {
			msg := &ParticipantMessageData{
				GuidPrefix: d.cfg.ParticipantGUID.Prefix,
				Kind:       ParticipantMessageAutomaticLivelinessUpdate,
			}
			if err := d.messageWriter.Write(msg); err != nil {
				d.log.Errorf("writing automatic liveliness: %s", err)
				return
			}
			d.lastAutoEmit = now
		}
	}

	if min, ok := d.db.MinLivelinessLease(qos.ManualByParticipant); ok {
		asserted := d.lastManualRefresh > d.lastManualEmit
		if asserted && now.Sub(d.lastManualEmit) > min/3 {
			msg := &ParticipantMessageData{
				GuidPrefix: d.cfg.ParticipantGUID.Prefix,
				Kind:       ParticipantMessageManualLivelinessUpdate,
			}
			if err := d.messageWriter.Write(msg); err != nil {
				d.log.Errorf("writing manual liveliness: %s", err)
				return
			}
			d.lastManualEmit = now
		}
	}
}

func (d *Discovery) participantCleanup() {
	expired := d.db.ParticipantCleanup(rtps.Now())
	if len(expired) == 0 {
		return
	}
	d.notify(DataUpdate{Kind: WritersInfoUpdated})
	d.notify(DataUpdate{Kind: ReadersInfoUpdated})
}

func (d *Discovery) checkRemoteLiveliness() {
	lost := d.db.ExpiredWriterLeases(rtps.Now())
	if len(lost) == 0 {
		return
	}
	for _, guid := range lost {
		d.log.Infof("remote writer %s lost liveliness", guid)
		if d.cfg.OnRemoteWriterLost != nil {
			d.cfg.OnRemoteWriterLost(guid)
		}
	}
	d.notify(DataUpdate{Kind: WritersInfoUpdated})
}

func (d *Discovery) notify(update DataUpdate) {
	d.updates.Enqueue(update)
}
