package discovery

import (
	"sync"

	logging "github.com/sirupsen/logrus"

	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
)

// EndpointState tracks one remote endpoint through discovery.
type EndpointState int

const (
	// StateUnknown: seen but not matched, either because no local
	// counterpart exists or because the QoS is incompatible.
	StateUnknown EndpointState = iota
	// StateMatched: topic, type, and QoS line up with a local
	// counterpart.
	StateMatched
	// StateDisposed: the remote side explicitly disposed the endpoint.
	StateDisposed
	// StateExpired: the owning participant's lease lapsed.
	StateExpired
)

func (s EndpointState) String() string {
	switch s {
	case StateMatched:
		return "matched"
	case StateDisposed:
		return "disposed"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// LeaseKind distinguishes the two participant-level liveliness leases.
type LeaseKind int

const (
	LeaseAutomatic LeaseKind = iota
	LeaseManualByParticipant
)

type (
	// ParticipantProxy is everything known about a remote participant.
	ParticipantProxy struct {
		Data      SPDPDiscoveredParticipantData
		LastHeard rtps.Timestamp
	}

	remoteReader struct {
		data          DiscoveredReaderData
		state         EndpointState
		incompatible  *qos.Incompatibility
		changeCounter uint64
	}

	remoteWriter struct {
		data          DiscoveredWriterData
		state         EndpointState
		incompatible  *qos.Incompatibility
		changeCounter uint64
	}

	topicRecord struct {
		data DiscoveredTopicData
	}

	// DB is the authoritative in-memory registry of known participants,
	// remote endpoints, topics, and liveliness leases. All mutations are
	// serialized behind the lock; mutators return a changed flag used to
	// debounce notifications. Local endpoints created by the application
	// are tracked separately and removed only on explicit teardown.
	DB struct {
		mu sync.RWMutex

		participants map[rtps.GUIDPrefix]*ParticipantProxy
		leases       map[rtps.GUIDPrefix]map[LeaseKind]rtps.Timestamp
		assertions   map[rtps.GUIDPrefix]map[LeaseKind]uint64

		remoteReaders map[rtps.GUID]*remoteReader
		remoteWriters map[rtps.GUID]*remoteWriter

		localReaders map[rtps.GUID]DiscoveredReaderData
		localWriters map[rtps.GUID]DiscoveredWriterData

		topics map[string]*topicRecord

		readersChanged bool
		writersChanged bool

		spdpSeedLocators []rtps.Locator

		incompatibleQos uint64

		log     *logging.Entry
		metrics dbMetrics
	}
)

// NewDB creates an empty registry.
func NewDB(log *logging.Entry) *DB {
	return &DB{
		participants:  make(map[rtps.GUIDPrefix]*ParticipantProxy),
		leases:        make(map[rtps.GUIDPrefix]map[LeaseKind]rtps.Timestamp),
		assertions:    make(map[rtps.GUIDPrefix]map[LeaseKind]uint64),
		remoteReaders: make(map[rtps.GUID]*remoteReader),
		remoteWriters: make(map[rtps.GUID]*remoteWriter),
		localReaders:  make(map[rtps.GUID]DiscoveredReaderData),
		localWriters:  make(map[rtps.GUID]DiscoveredWriterData),
		topics:        make(map[string]*topicRecord),
		log:           log.WithField("component", "discovery-db"),
		metrics:       discoveryVecs.newDBMetrics(),
	}
}

/////////////////////
/// participants  ///
/////////////////////

// UpdateParticipant records or refreshes a remote participant. The
// last-heard timestamp always advances; the changed flag is true when the
// participant is new, its lease changed, or the number of its metatraffic
// or default unicast locators changed. Other field changes are stored but
// not reported as a change.
func (db *DB) UpdateParticipant(data *SPDPDiscoveredParticipantData) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	prefix := data.GUID.Prefix
	now := rtps.Now()

	existing, known := db.participants[prefix]
	if known {
		changed := existing.Data.LeaseDuration != data.LeaseDuration ||
			len(existing.Data.MetatrafficUnicastLocators) != len(data.MetatrafficUnicastLocators) ||
			len(existing.Data.DefaultUnicastLocators) != len(data.DefaultUnicastLocators)
		existing.Data = *data
		existing.LastHeard = now
		return changed
	}

	db.participants[prefix] = &ParticipantProxy{Data: *data, LastHeard: now}
	if _, ok := db.leases[prefix]; !ok {
		db.leases[prefix] = map[LeaseKind]rtps.Timestamp{
			LeaseAutomatic:           now,
			LeaseManualByParticipant: now,
		}
	}
	db.metrics.setParticipants(len(db.participants))
	db.log.Infof("discovered participant %s, lease %s", prefix, data.LeaseDuration)

	// endpoints of a previously expired participant can match again
	db.rematchPrefixLocked(prefix)
	return true
}

// RemoveParticipant removes a participant and moves every remote endpoint
// with its prefix to a terminal state. The endpoint records are kept, so
// the endpoints of a rediscovered participant can match again. expired
// selects the Expired terminal state instead of Disposed. It returns
// whether anything was removed and how many reader and writer endpoints
// were moved with the participant.
func (db *DB) RemoveParticipant(prefix rtps.GUIDPrefix, expired bool) (bool, int, int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.removeParticipantLocked(prefix, expired)
}

func (db *DB) removeParticipantLocked(prefix rtps.GUIDPrefix, expired bool) (bool, int, int) {
	if _, ok := db.participants[prefix]; !ok {
		return false, 0, 0
	}
	delete(db.participants, prefix)
	delete(db.leases, prefix)
	delete(db.assertions, prefix)

	terminal := StateDisposed
	if expired {
		terminal = StateExpired
	}
	readers, writers := 0, 0
	for guid, r := range db.remoteReaders {
		if guid.Prefix == prefix {
			r.state = terminal
			readers++
		}
	}
	for guid, w := range db.remoteWriters {
		if guid.Prefix == prefix {
			w.state = terminal
			writers++
		}
	}
	db.metrics.setParticipants(len(db.participants))
	db.metrics.setMatched(db.matchedCountLocked())
	db.log.Infof("removed participant %s (%s): %d readers, %d writers lost", prefix, terminal, readers, writers)
	return true, readers, writers
}

// ParticipantCleanup expires every participant whose last-heard timestamp
// is older than its declared lease, moving its endpoints to the Expired
// state at the same time. It returns the expired prefixes.
func (db *DB) ParticipantCleanup(now rtps.Timestamp) []rtps.GUIDPrefix {
	db.mu.Lock()
	defer db.mu.Unlock()

	var expired []rtps.GUIDPrefix
	for prefix, proxy := range db.participants {
		lease := proxy.Data.LeaseDuration
		if lease == rtps.DurationInfinite {
			continue
		}
		if now.Sub(proxy.LastHeard) > lease {
			expired = append(expired, prefix)
		}
	}
	for _, prefix := range expired {
		db.removeParticipantLocked(prefix, true)
		db.metrics.incCleanups()
	}
	return expired
}

// KnownParticipant reports whether a participant is currently known.
func (db *DB) KnownParticipant(prefix rtps.GUIDPrefix) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.participants[prefix]
	return ok
}

// Participants snapshots the known participants.
func (db *DB) Participants() []ParticipantProxy {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]ParticipantProxy, 0, len(db.participants))
	for _, p := range db.participants {
		out = append(out, *p)
	}
	return out
}

//////////////////////////
/// remote endpoints   ///
//////////////////////////

// UpdateSubscription records a remote reader and evaluates matching
// against local writers. The changed flag is true when the endpoint is
// new or its state moved.
func (db *DB) UpdateSubscription(data *DiscoveredReaderData) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	guid := data.Subscription.Key
	r, known := db.remoteReaders[guid]
	if !known {
		r = &remoteReader{}
		db.remoteReaders[guid] = r
	}
	prevState := r.state
	r.data = *data
	r.changeCounter++

	r.state, r.incompatible = db.matchReaderLocked(data)
	if r.incompatible != nil && (prevState != r.state || !known) {
		db.incompatibleQos++
		db.metrics.incIncompatibleQos()
		db.log.Warnf("remote reader %s on %s: %s", guid, data.Subscription.TopicName, r.incompatible)
	}
	db.metrics.setRemoteReaders(len(db.remoteReaders))
	db.metrics.setMatched(db.matchedCountLocked())
	return !known || prevState != r.state
}

// UpdatePublication records a remote writer and evaluates matching
// against local readers.
func (db *DB) UpdatePublication(data *DiscoveredWriterData) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	guid := data.Publication.Key
	w, known := db.remoteWriters[guid]
	if !known {
		w = &remoteWriter{}
		db.remoteWriters[guid] = w
	}
	prevState := w.state
	w.data = *data
	w.changeCounter++

	w.state, w.incompatible = db.matchWriterLocked(data)
	if w.incompatible != nil && (prevState != w.state || !known) {
		db.incompatibleQos++
		db.metrics.incIncompatibleQos()
		db.log.Warnf("remote writer %s on %s: %s", guid, data.Publication.TopicName, w.incompatible)
	}
	db.metrics.setRemoteWriters(len(db.remoteWriters))
	db.metrics.setMatched(db.matchedCountLocked())
	return !known || prevState != w.state
}

// RemoveTopicReader handles an explicit dispose of a remote reader.
func (db *DB) RemoveTopicReader(guid rtps.GUID) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.remoteReaders[guid]
	if !ok || r.state == StateDisposed {
		return false
	}
	r.state = StateDisposed
	r.changeCounter++
	db.metrics.setMatched(db.matchedCountLocked())
	return true
}

// RemoveTopicWriter handles an explicit dispose of a remote writer.
func (db *DB) RemoveTopicWriter(guid rtps.GUID) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	w, ok := db.remoteWriters[guid]
	if !ok || w.state == StateDisposed {
		return false
	}
	w.state = StateDisposed
	w.changeCounter++
	db.metrics.setMatched(db.matchedCountLocked())
	return true
}

// ReaderState returns the discovery state of a remote reader.
func (db *DB) ReaderState(guid rtps.GUID) (EndpointState, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.remoteReaders[guid]
	if !ok {
		return StateUnknown, false
	}
	return r.state, true
}

// WriterState returns the discovery state of a remote writer.
func (db *DB) WriterState(guid rtps.GUID) (EndpointState, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	w, ok := db.remoteWriters[guid]
	if !ok {
		return StateUnknown, false
	}
	return w.state, true
}

// EndpointChangeCounter returns how many discovery samples touched an
// endpoint, matched or not; applications use it to surface incompatible
// QoS events.
func (db *DB) EndpointChangeCounter(guid rtps.GUID) uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if r, ok := db.remoteReaders[guid]; ok {
		return r.changeCounter
	}
	if w, ok := db.remoteWriters[guid]; ok {
		return w.changeCounter
	}
	return 0
}

// Incompatibility returns the recorded QoS incompatibility of an
// endpoint, if any.
func (db *DB) Incompatibility(guid rtps.GUID) *qos.Incompatibility {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if r, ok := db.remoteReaders[guid]; ok {
		return r.incompatible
	}
	if w, ok := db.remoteWriters[guid]; ok {
		return w.incompatible
	}
	return nil
}

// IncompatibleQosCount returns the total incompatible-QoS occurrences
// observed.
func (db *DB) IncompatibleQosCount() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.incompatibleQos
}

// MatchedWriters returns the remote writers currently matched for a
// given topic.
func (db *DB) MatchedWriters(topic string) []DiscoveredWriterData {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []DiscoveredWriterData
	for _, w := range db.remoteWriters {
		if w.state == StateMatched && w.data.Publication.TopicName == topic {
			out = append(out, w.data)
		}
	}
	return out
}

// MatchedReaders returns the remote readers currently matched for a
// given topic.
func (db *DB) MatchedReaders(topic string) []DiscoveredReaderData {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []DiscoveredReaderData
	for _, r := range db.remoteReaders {
		if r.state == StateMatched && r.data.Subscription.TopicName == topic {
			out = append(out, r.data)
		}
	}
	return out
}

// matchReaderLocked finds a local writer whose topic, type, and offered
// QoS satisfy the remote reader's request.
func (db *DB) matchReaderLocked(data *DiscoveredReaderData) (EndpointState, *qos.Incompatibility) {
	var lastIncompat *qos.Incompatibility
	for _, lw := range db.localWriters {
		if lw.Publication.TopicName != data.Subscription.TopicName ||
			lw.Publication.TypeName != data.Subscription.TypeName {
			continue
		}
		if incompat := qos.Compatible(&data.Subscription.Qos, &lw.Publication.Qos); incompat != nil {
			lastIncompat = incompat
			continue
		}
		return StateMatched, nil
	}
	return StateUnknown, lastIncompat
}

// matchWriterLocked finds a local reader whose requested QoS the remote
// writer's offer satisfies.
func (db *DB) matchWriterLocked(data *DiscoveredWriterData) (EndpointState, *qos.Incompatibility) {
	var lastIncompat *qos.Incompatibility
	for _, lr := range db.localReaders {
		if lr.Subscription.TopicName != data.Publication.TopicName ||
			lr.Subscription.TypeName != data.Publication.TypeName {
			continue
		}
		if incompat := qos.Compatible(&lr.Subscription.Qos, &data.Publication.Qos); incompat != nil {
			lastIncompat = incompat
			continue
		}
		return StateMatched, nil
	}
	return StateUnknown, lastIncompat
}

// rematchPrefixLocked re-evaluates endpoints of a rediscovered
// participant so Disposed/Expired endpoints can return to Matched.
func (db *DB) rematchPrefixLocked(prefix rtps.GUIDPrefix) {
	for guid, r := range db.remoteReaders {
		if guid.Prefix != prefix {
			continue
		}
		if r.state == StateDisposed || r.state == StateExpired {
			r.state, r.incompatible = db.matchReaderLocked(&r.data)
			r.changeCounter++
		}
	}
	for guid, w := range db.remoteWriters {
		if guid.Prefix != prefix {
			continue
		}
		if w.state == StateDisposed || w.state == StateExpired {
			w.state, w.incompatible = db.matchWriterLocked(&w.data)
			w.changeCounter++
		}
	}
}

// rematchAllLocked re-evaluates every live remote endpoint after the
// local endpoint set changed.
func (db *DB) rematchAllLocked() {
	for _, r := range db.remoteReaders {
		if r.state == StateDisposed || r.state == StateExpired {
			continue
		}
		r.state, r.incompatible = db.matchReaderLocked(&r.data)
	}
	for _, w := range db.remoteWriters {
		if w.state == StateDisposed || w.state == StateExpired {
			continue
		}
		w.state, w.incompatible = db.matchWriterLocked(&w.data)
	}
	db.metrics.setMatched(db.matchedCountLocked())
}

func (db *DB) matchedCountLocked() int {
	n := 0
	for _, r := range db.remoteReaders {
		if r.state == StateMatched {
			n++
		}
	}
	for _, w := range db.remoteWriters {
		if w.state == StateMatched {
			n++
		}
	}
	return n
}

///////////////////////
/// local endpoints ///
///////////////////////

// AddLocalReader registers a reader created by the application (or by
// discovery itself) and flags the reader set as changed.
func (db *DB) AddLocalReader(data DiscoveredReaderData) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.localReaders[data.Subscription.Key] = data
	db.readersChanged = true
	db.rematchAllLocked()
}

// AddLocalWriter registers a writer created by the application.
func (db *DB) AddLocalWriter(data DiscoveredWriterData) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.localWriters[data.Publication.Key] = data
	db.writersChanged = true
	db.rematchAllLocked()
}

// RemoveLocalReader drops a local reader from the registry.
func (db *DB) RemoveLocalReader(guid rtps.GUID) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.localReaders[guid]; !ok {
		return false
	}
	delete(db.localReaders, guid)
	db.readersChanged = true
	db.rematchAllLocked()
	return true
}

// RemoveLocalWriter drops a local writer from the registry.
func (db *DB) RemoveLocalWriter(guid rtps.GUID) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.localWriters[guid]; !ok {
		return false
	}
	delete(db.localWriters, guid)
	db.writersChanged = true
	db.rematchAllLocked()
	return true
}

// LocalReaders snapshots every locally registered reader.
func (db *DB) LocalReaders() []DiscoveredReaderData {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]DiscoveredReaderData, 0, len(db.localReaders))
	for _, d := range db.localReaders {
		out = append(out, d)
	}
	return out
}

// LocalWriters snapshots every locally registered writer.
func (db *DB) LocalWriters() []DiscoveredWriterData {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]DiscoveredWriterData, 0, len(db.localWriters))
	for _, d := range db.localWriters {
		out = append(out, d)
	}
	return out
}

// LocalUserReaders snapshots local readers with the built-in discovery
// readers filtered out; this is what gets advertised on DCPSSubscription.
func (db *DB) LocalUserReaders() []DiscoveredReaderData {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]DiscoveredReaderData, 0, len(db.localReaders))
	for guid, d := range db.localReaders {
		if guid.EntityID.IsBuiltinReader() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// LocalUserWriters is the writer-side counterpart of LocalUserReaders.
func (db *DB) LocalUserWriters() []DiscoveredWriterData {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]DiscoveredWriterData, 0, len(db.localWriters))
	for guid, d := range db.localWriters {
		if guid.EntityID.IsBuiltinWriter() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// IsReadersChanged reports the debounce flag for reader advertisements.
func (db *DB) IsReadersChanged() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.readersChanged
}

// SetReadersChanged overwrites the reader debounce flag.
func (db *DB) SetReadersChanged(v bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.readersChanged = v
}

// IsWritersChanged reports the debounce flag for writer advertisements.
func (db *DB) IsWritersChanged() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.writersChanged
}

// SetWritersChanged overwrites the writer debounce flag.
func (db *DB) SetWritersChanged(v bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.writersChanged = v
}

//////////////
/// topics ///
//////////////

// UpdateTopicData records topic metadata; changed is true when the topic
// is new or its type name moved.
func (db *DB) UpdateTopicData(data *DiscoveredTopicData) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, known := db.topics[data.Topic.Name]
	if known {
		changed := rec.data.Topic.TypeName != data.Topic.TypeName
		rec.data = *data
		return changed
	}
	db.topics[data.Topic.Name] = &topicRecord{data: *data}
	return true
}

// Topics snapshots every known topic record.
func (db *DB) Topics() []DiscoveredTopicData {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]DiscoveredTopicData, 0, len(db.topics))
	for _, rec := range db.topics {
		out = append(out, rec.data)
	}
	return out
}

// TopicCleanup removes topic records referenced by no remaining
// endpoint, returning the removed names.
func (db *DB) TopicCleanup() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	referenced := make(map[string]struct{})
	for _, d := range db.localReaders {
		referenced[d.Subscription.TopicName] = struct{}{}
	}
	for _, d := range db.localWriters {
		referenced[d.Publication.TopicName] = struct{}{}
	}
	for _, r := range db.remoteReaders {
		if r.state == StateMatched || r.state == StateUnknown {
			referenced[r.data.Subscription.TopicName] = struct{}{}
		}
	}
	for _, w := range db.remoteWriters {
		if w.state == StateMatched || w.state == StateUnknown {
			referenced[w.data.Publication.TopicName] = struct{}{}
		}
	}

	var removed []string
	for name := range db.topics {
		if _, ok := referenced[name]; !ok {
			removed = append(removed, name)
		}
	}
	for _, name := range removed {
		delete(db.topics, name)
		db.metrics.incCleanups()
	}
	return removed
}

//////////////////
/// liveliness ///
//////////////////

// UpdateLease refreshes the participant-level liveliness lease matching
// the assertion kind.
func (db *DB) UpdateLease(msg *ParticipantMessageData) {
	db.mu.Lock()
	defer db.mu.Unlock()

	kinds, ok := db.leases[msg.GuidPrefix]
	if !ok {
		kinds = make(map[LeaseKind]rtps.Timestamp)
		db.leases[msg.GuidPrefix] = kinds
	}
	counts, ok := db.assertions[msg.GuidPrefix]
	if !ok {
		counts = make(map[LeaseKind]uint64)
		db.assertions[msg.GuidPrefix] = counts
	}

	now := rtps.Now()
	switch msg.Kind {
	case ParticipantMessageAutomaticLivelinessUpdate:
		kinds[LeaseAutomatic] = now
		counts[LeaseAutomatic]++
	case ParticipantMessageManualLivelinessUpdate:
		kinds[LeaseManualByParticipant] = now
		counts[LeaseManualByParticipant]++
	default:
		db.log.Debugf("ignoring participant message of unknown kind %#x from %s", msg.Kind, msg.GuidPrefix)
	}
}

// AssertionCount returns how many liveliness assertions of a kind have
// been received from a participant.
func (db *DB) AssertionCount(prefix rtps.GUIDPrefix, kind LeaseKind) uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.assertions[prefix][kind]
}

// LastLease returns the last assertion instant for a participant and
// kind.
func (db *DB) LastLease(prefix rtps.GUIDPrefix, kind LeaseKind) (rtps.Timestamp, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	kinds, ok := db.leases[prefix]
	if !ok {
		return rtps.TimestampInvalid, false
	}
	ts, ok := kinds[kind]
	return ts, ok
}

// ExpiredWriterLeases returns matched remote writers whose liveliness
// lease has lapsed: the data path transitions their instances to
// not-alive-no-writers.
func (db *DB) ExpiredWriterLeases(now rtps.Timestamp) []rtps.GUID {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var lost []rtps.GUID
	for guid, w := range db.remoteWriters {
		if w.state != StateMatched {
			continue
		}
		lv := w.data.Publication.Qos.EffectiveLiveliness()
		if lv.LeaseDuration == rtps.DurationInfinite {
			continue
		}
		kind := LeaseAutomatic
		if lv.Kind != qos.Automatic {
			kind = LeaseManualByParticipant
		}
		last, ok := db.leases[guid.Prefix][kind]
		if !ok {
			continue
		}
		if now.Sub(last) > lv.LeaseDuration {
			lost = append(lost, guid)
		}
	}
	return lost
}

// MinLivelinessLease returns the smallest lease duration among local
// writers asserting liveliness of the given kind, and whether any exist.
func (db *DB) MinLivelinessLease(kind qos.LivelinessKind) (rtps.Duration, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	min := rtps.DurationInfinite
	found := false
	for _, w := range db.localWriters {
		lv := w.Publication.Qos.Liveliness
		if lv == nil || lv.Kind != kind {
			continue
		}
		if !found || lv.LeaseDuration < min {
			min = lv.LeaseDuration
			found = true
		}
	}
	return min, found
}

///////////////////
/// SPDP seeding ///
///////////////////

// SeedSPDPLocator records the well-known SPDP multicast locator the
// transport should address participant announcements to.
func (db *DB) SeedSPDPLocator(loc rtps.Locator) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.spdpSeedLocators = append(db.spdpSeedLocators, loc)
}

// SPDPSeedLocators returns the seeded discovery locators.
func (db *DB) SPDPSeedLocators() []rtps.Locator {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]rtps.Locator, len(db.spdpSeedLocators))
	copy(out, db.spdpSeedLocators)
	return out
}
