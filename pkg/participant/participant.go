// Package participant assembles the domain participant: one sample
// cache, one discovery DB, one discovery loop, and the factory surface
// for topics, readers, and writers.
package participant

import (
	"fmt"
	"net"
	"sync"
	"time"

	logging "github.com/sirupsen/logrus"

	"github.com/tarium/godds/controller/discovery"
	"github.com/tarium/godds/pkg/cache"
	"github.com/tarium/godds/pkg/endpoint"
	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
)

// Error categories, re-exported so applications need only this package.
var (
	ErrPreconditionNotMet = endpoint.ErrPreconditionNotMet
	ErrOutOfResources     = endpoint.ErrOutOfResources
	ErrTimeout            = endpoint.ErrTimeout
)

const updateQueueCapacity = 128

// Config parameterizes a participant.
type Config struct {
	DomainID      uint16
	ParticipantID uint16

	// Discovery timer overrides, zero meaning the protocol defaults.
	// Tests shorten these.
	Discovery discovery.Config
}

// DomainParticipant is the entry point of the middleware: it owns the
// shared state and the discovery thread, and creates the typed endpoint
// façades.
type DomainParticipant struct {
	domainID      uint16
	participantID uint16
	guid          rtps.GUID

	cache   *cache.DDSCache
	db      *discovery.DB
	disc    *discovery.Discovery
	updates *discovery.UpdateQueue

	mu         sync.Mutex
	notifiers  map[string][]func()
	readers    []*endpoint.Reader
	nextEntity uint32
	closed     bool

	done chan struct{}
	log  *logging.Entry
}

// New creates a participant and starts its discovery loop. It fails
// deterministically if discovery cannot start.
func New(cfg Config, log *logging.Entry) (*DomainParticipant, error) {
	prefix := rtps.NewGUIDPrefix(rtps.VendorUnknown)
	guid := rtps.NewGUID(prefix, rtps.EntityParticipant)

	plog := log.WithFields(logging.Fields{
		"domain":      cfg.DomainID,
		"participant": cfg.ParticipantID,
	})

	p := &DomainParticipant{
		domainID:      cfg.DomainID,
		participantID: cfg.ParticipantID,
		guid:          guid,
		cache:         cache.New(plog),
		db:            discovery.NewDB(plog),
		updates:       discovery.NewUpdateQueue(updateQueueCapacity, plog),
		notifiers:     make(map[string][]func()),
		done:          make(chan struct{}),
		log:           plog,
	}

	dcfg := cfg.Discovery
	dcfg.DomainID = cfg.DomainID
	dcfg.ParticipantID = cfg.ParticipantID
	dcfg.ParticipantGUID = guid
	if len(dcfg.MetatrafficUnicastLocators) == 0 {
		dcfg.MetatrafficUnicastLocators = []rtps.Locator{
			rtps.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), rtps.SPDPWellKnownUnicastPort(cfg.DomainID, cfg.ParticipantID)),
		}
	}
	if len(dcfg.MetatrafficMulticastLocators) == 0 {
		dcfg.MetatrafficMulticastLocators = []rtps.Locator{rtps.SPDPMulticastLocator(cfg.DomainID)}
	}
	if len(dcfg.DefaultUnicastLocators) == 0 {
		dcfg.DefaultUnicastLocators = []rtps.Locator{
			rtps.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), rtps.UserTrafficUnicastPort(cfg.DomainID, cfg.ParticipantID)),
		}
	}
	dcfg.OnRemoteWriterLost = p.onRemoteWriterLost
	dcfg.OnReaderCreated = p.registerNotifier

	p.disc = discovery.New(dcfg, p.db, p.cache, p.updates, plog)
	go func() {
		p.disc.Run()
		close(p.done)
	}()

	if err := <-p.disc.Started(); err != nil {
		return nil, fmt.Errorf("starting discovery: %w", err)
	}
	plog.Infof("participant %s up", guid)
	return p, nil
}

// GUID returns the participant GUID.
func (p *DomainParticipant) GUID() rtps.GUID {
	return p.guid
}

// DomainID returns the domain this participant lives in.
func (p *DomainParticipant) DomainID() uint16 {
	return p.domainID
}

// Cache exposes the shared sample cache to the transport collaborator.
func (p *DomainParticipant) Cache() *cache.DDSCache {
	return p.cache
}

// DB exposes the discovery registry.
func (p *DomainParticipant) DB() *discovery.DB {
	return p.db
}

// Updates is the notification stream consumed by the data path.
func (p *DomainParticipant) Updates() <-chan discovery.DataUpdate {
	return p.updates.Updates()
}

// CreateTopic declares a topic. It returns false without touching
// anything when the topic already exists.
func (p *DomainParticipant) CreateTopic(name, typeName string, kind cache.TopicKind, policies qos.Policies) bool {
	if !p.cache.AddTopic(name, kind, cache.TypeDesc(typeName)) {
		return false
	}
	p.cache.SetTopicQos(name, policies)
	p.db.UpdateTopicData(&discovery.DiscoveredTopicData{
		UpdatedTime: rtps.Now(),
		Topic: discovery.TopicBuiltinTopicData{
			Name:     name,
			TypeName: typeName,
			Qos:      policies,
		},
	})
	return true
}

// CreateWriter creates a typed writer on an existing topic and registers
// it with discovery.
func (p *DomainParticipant) CreateWriter(topic string, ser endpoint.Serializer, policies qos.Policies) (*endpoint.Writer, error) {
	typeName, ok := p.cache.TypeDescOf(topic)
	if !ok {
		return nil, fmt.Errorf("%w: topic %s does not exist", ErrPreconditionNotMet, topic)
	}
	kind, _ := p.cache.TopicKindOf(topic)

	guid := rtps.NewGUID(p.guid.Prefix, rtps.NewUserWriterEntityID(p.nextEntityKey(), kind == cache.WithKey))
	w, err := endpoint.NewWriter(guid, topic, policies, p.cache, ser, func() { p.NotifyTopic(topic) }, p.log)
	if err != nil {
		return nil, err
	}

	w.SetLivelinessHook(func() { p.AssertWriterLiveliness(guid) })

	p.db.AddLocalWriter(discovery.DiscoveredWriterData{
		WriterProxy: discovery.WriterProxy{RemoteWriterGUID: guid},
		Publication: discovery.PublicationBuiltinTopicData{
			Key:            guid,
			ParticipantKey: p.guid,
			TopicName:      topic,
			TypeName:       string(typeName),
			Qos:            policies,
		},
	})
	return w, nil
}

// CreateReader creates a typed reader on an existing topic and registers
// it with discovery.
func (p *DomainParticipant) CreateReader(topic string, des endpoint.Deserializer, policies qos.Policies) (*endpoint.Reader, error) {
	typeName, ok := p.cache.TypeDescOf(topic)
	if !ok {
		return nil, fmt.Errorf("%w: topic %s does not exist", ErrPreconditionNotMet, topic)
	}
	kind, _ := p.cache.TopicKindOf(topic)

	guid := rtps.NewGUID(p.guid.Prefix, rtps.NewUserReaderEntityID(p.nextEntityKey(), kind == cache.WithKey))
	r, err := endpoint.NewReader(guid, topic, policies, p.cache, des, p.log)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.readers = append(p.readers, r)
	p.notifiers[topic] = append(p.notifiers[topic], r.Notify)
	p.mu.Unlock()

	p.db.AddLocalReader(discovery.DiscoveredReaderData{
		ReaderProxy: discovery.ReaderProxy{RemoteReaderGUID: guid},
		Subscription: discovery.SubscriptionBuiltinTopicData{
			Key:            guid,
			ParticipantKey: p.guid,
			TopicName:      topic,
			TypeName:       string(typeName),
			Qos:            policies,
		},
	})
	return r, nil
}

// DeleteWriter tears a writer down: discovery disposes its advertisement
// and drops it from the local tables.
func (p *DomainParticipant) DeleteWriter(w *endpoint.Writer) {
	p.sendCommand(discovery.Command{Kind: discovery.CommandRemoveLocalWriter, GUID: w.GUID()})
	w.Close()
}

// DeleteReader tears a reader down.
func (p *DomainParticipant) DeleteReader(r *endpoint.Reader) {
	p.sendCommand(discovery.Command{Kind: discovery.CommandRemoveLocalReader, GUID: r.GUID()})
	r.Close()

	p.mu.Lock()
	for i, known := range p.readers {
		if known == r {
			p.readers = append(p.readers[:i], p.readers[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// AssertLiveliness refreshes the participant's manual-by-participant
// liveliness.
func (p *DomainParticipant) AssertLiveliness() {
	p.sendCommand(discovery.Command{Kind: discovery.CommandRefreshManualLiveliness})
}

// AssertWriterLiveliness asks the data path to refresh liveliness for
// one writer.
func (p *DomainParticipant) AssertWriterLiveliness(writer rtps.GUID) {
	p.sendCommand(discovery.Command{Kind: discovery.CommandAssertTopicLiveliness, GUID: writer})
}

// NotifyTopic wakes every local reader subscribed to a topic. The
// transport calls this after delivering inbound changes into the cache.
func (p *DomainParticipant) NotifyTopic(topic string) {
	p.mu.Lock()
	notifiers := make([]func(), len(p.notifiers[topic]))
	copy(notifiers, p.notifiers[topic])
	p.mu.Unlock()
	for _, notify := range notifiers {
		notify()
	}
}

// Close stops discovery, which disposes every local endpoint on the wire
// before the loop exits.
func (p *DomainParticipant) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.sendCommand(discovery.Command{Kind: discovery.CommandStop})
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		p.log.Error("discovery did not stop in time")
	}
	p.log.Info("participant closed")
}

func (p *DomainParticipant) sendCommand(cmd discovery.Command) {
	select {
	case p.disc.Commands() <- cmd:
	case <-p.done:
	}
}

func (p *DomainParticipant) registerNotifier(topic string, notify func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifiers[topic] = append(p.notifiers[topic], notify)
}

func (p *DomainParticipant) onRemoteWriterLost(writer rtps.GUID) {
	p.mu.Lock()
	readers := make([]*endpoint.Reader, len(p.readers))
	copy(readers, p.readers)
	p.mu.Unlock()
	for _, r := range readers {
		r.OnWriterLost(writer)
	}
}

func (p *DomainParticipant) nextEntityKey() [3]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextEntity++
	n := p.nextEntity
	return [3]byte{byte(n >> 16), byte(n >> 8), byte(n)}
}
