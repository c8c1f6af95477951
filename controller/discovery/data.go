// Package discovery implements the SPDP/SEDP coordination engine: the
// event loop that operates the built-in discovery topics, the DiscoveryDB
// holding everything learned from them, and the notification queue that
// feeds discovery decisions to the data path.
package discovery

import (
	"encoding/json"
	"fmt"

	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
)

// Built-in topic names, DDS 2.2.5.
const (
	ParticipantTopic        = "DCPSParticipant"
	SubscriptionTopic       = "DCPSSubscription"
	PublicationTopic        = "DCPSPublication"
	TopicTopic              = "DCPSTopic"
	ParticipantMessageTopic = "DCPSParticipantMessage"
)

// Built-in topic type names.
const (
	ParticipantTypeName        = "SPDPDiscoveredParticipantData"
	SubscriptionTypeName       = "DiscoveredReaderData"
	PublicationTypeName        = "DiscoveredWriterData"
	TopicTypeName              = "DiscoveredTopicData"
	ParticipantMessageTypeName = "ParticipantMessageData"
)

// SPDPDiscoveredParticipantData is one participant's announcement on
// DCPSParticipant.
type SPDPDiscoveredParticipantData struct {
	UpdatedTime     rtps.Timestamp
	GUID            rtps.GUID
	ProtocolVersion [2]byte
	VendorID        rtps.VendorID

	ExpectsInlineQos bool

	MetatrafficUnicastLocators   []rtps.Locator
	MetatrafficMulticastLocators []rtps.Locator
	DefaultUnicastLocators       []rtps.Locator
	DefaultMulticastLocators     []rtps.Locator

	AvailableBuiltinEndpoints uint32
	LeaseDuration             rtps.Duration
	ManualLivelinessCount     int32
}

// ReaderProxy locates a remote reader on the wire.
type ReaderProxy struct {
	RemoteReaderGUID  rtps.GUID
	ExpectsInlineQos  bool
	UnicastLocators   []rtps.Locator
	MulticastLocators []rtps.Locator
}

// WriterProxy locates a remote writer on the wire.
type WriterProxy struct {
	RemoteWriterGUID  rtps.GUID
	UnicastLocators   []rtps.Locator
	MulticastLocators []rtps.Locator
}

// SubscriptionBuiltinTopicData describes a reader endpoint: its identity,
// topic and type names, and its requested QoS.
type SubscriptionBuiltinTopicData struct {
	Key            rtps.GUID
	ParticipantKey rtps.GUID
	TopicName      string
	TypeName       string
	Qos            qos.Policies
}

// PublicationBuiltinTopicData describes a writer endpoint and its offered
// QoS.
type PublicationBuiltinTopicData struct {
	Key            rtps.GUID
	ParticipantKey rtps.GUID
	TopicName      string
	TypeName       string
	Qos            qos.Policies
}

// DiscoveredReaderData is one reader's advertisement on DCPSSubscription.
type DiscoveredReaderData struct {
	ReaderProxy  ReaderProxy
	Subscription SubscriptionBuiltinTopicData
}

// DiscoveredWriterData is one writer's advertisement on DCPSPublication.
type DiscoveredWriterData struct {
	WriterProxy WriterProxy
	Publication PublicationBuiltinTopicData
}

// TopicBuiltinTopicData carries a topic's built-in metadata.
type TopicBuiltinTopicData struct {
	Name     string
	TypeName string
	Qos      qos.Policies
}

// DiscoveredTopicData is one topic's advertisement on DCPSTopic.
type DiscoveredTopicData struct {
	UpdatedTime rtps.Timestamp
	Topic       TopicBuiltinTopicData
}

// ParticipantMessageKind tags a liveliness assertion, RTPS 8.4.13.
type ParticipantMessageKind uint32

const (
	ParticipantMessageUnknown                   ParticipantMessageKind = 0x00000000
	ParticipantMessageAutomaticLivelinessUpdate ParticipantMessageKind = 0x00000001
	ParticipantMessageManualLivelinessUpdate    ParticipantMessageKind = 0x00000002
)

// ParticipantMessageData is one liveliness assertion on
// DCPSParticipantMessage.
type ParticipantMessageData struct {
	GuidPrefix rtps.GUIDPrefix
	Kind       ParticipantMessageKind
	Data       []byte
}

// participantMessageKey is the PMD instance key: prefix plus kind, so
// automatic and manual assertions are distinct instances.
type participantMessageKey struct {
	Prefix rtps.GUIDPrefix        `json:"prefix"`
	Kind   ParticipantMessageKind `json:"kind"`
}

// builtinCodec serializes one built-in data type. Discovery payloads are
// PL_CDR on the real wire; the byte-level codec is a collaborator, so the
// built-in topics go through the same opaque-payload interfaces as user
// data, with a self-describing encoding standing in for it.
type builtinCodec struct {
	rep      rtps.RepresentationIdentifier
	newValue func() interface{}
	keyOf    func(v interface{}) (interface{}, error)
	newKey   func() interface{}
}

func (c *builtinCodec) Representation() rtps.RepresentationIdentifier {
	return c.rep
}

func (c *builtinCodec) Serialize(value interface{}) ([]byte, []byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, nil, err
	}
	keyValue, err := c.keyOf(value)
	if err != nil {
		return nil, nil, err
	}
	key, err := json.Marshal(keyValue)
	if err != nil {
		return nil, nil, err
	}
	return payload, key, nil
}

func (c *builtinCodec) SerializeKey(key interface{}) ([]byte, error) {
	return json.Marshal(key)
}

func (c *builtinCodec) Deserialize(_ rtps.RepresentationIdentifier, payload []byte) (interface{}, error) {
	v := c.newValue()
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *builtinCodec) DeserializeKey(_ rtps.RepresentationIdentifier, key []byte) (interface{}, error) {
	k := c.newKey()
	if err := json.Unmarshal(key, k); err != nil {
		return nil, err
	}
	return k, nil
}

func participantCodec() *builtinCodec {
	return &builtinCodec{
		rep:      rtps.RepresentationPLCDRLE,
		newValue: func() interface{} { return &SPDPDiscoveredParticipantData{} },
		keyOf: func(v interface{}) (interface{}, error) {
			d, ok := v.(*SPDPDiscoveredParticipantData)
			if !ok {
				return nil, fmt.Errorf("expected SPDPDiscoveredParticipantData, got %T", v)
			}
			return d.GUID, nil
		},
		newKey: func() interface{} { return &rtps.GUID{} },
	}
}

func readerDataCodec() *builtinCodec {
	return &builtinCodec{
		rep:      rtps.RepresentationPLCDRLE,
		newValue: func() interface{} { return &DiscoveredReaderData{} },
		keyOf: func(v interface{}) (interface{}, error) {
			d, ok := v.(*DiscoveredReaderData)
			if !ok {
				return nil, fmt.Errorf("expected DiscoveredReaderData, got %T", v)
			}
			return d.Subscription.Key, nil
		},
		newKey: func() interface{} { return &rtps.GUID{} },
	}
}

func writerDataCodec() *builtinCodec {
	return &builtinCodec{
		rep:      rtps.RepresentationPLCDRLE,
		newValue: func() interface{} { return &DiscoveredWriterData{} },
		keyOf: func(v interface{}) (interface{}, error) {
			d, ok := v.(*DiscoveredWriterData)
			if !ok {
				return nil, fmt.Errorf("expected DiscoveredWriterData, got %T", v)
			}
			return d.Publication.Key, nil
		},
		newKey: func() interface{} { return &rtps.GUID{} },
	}
}

func topicDataCodec() *builtinCodec {
	return &builtinCodec{
		rep:      rtps.RepresentationPLCDRLE,
		newValue: func() interface{} { return &DiscoveredTopicData{} },
		keyOf: func(v interface{}) (interface{}, error) {
			d, ok := v.(*DiscoveredTopicData)
			if !ok {
				return nil, fmt.Errorf("expected DiscoveredTopicData, got %T", v)
			}
			return d.Topic.Name, nil
		},
		newKey: func() interface{} { var s string; return &s },
	}
}

func participantMessageCodec() *builtinCodec {
	return &builtinCodec{
		rep:      rtps.RepresentationCDRLE,
		newValue: func() interface{} { return &ParticipantMessageData{} },
		keyOf: func(v interface{}) (interface{}, error) {
			d, ok := v.(*ParticipantMessageData)
			if !ok {
				return nil, fmt.Errorf("expected ParticipantMessageData, got %T", v)
			}
			return participantMessageKey{Prefix: d.GuidPrefix, Kind: d.Kind}, nil
		},
		newKey: func() interface{} { return &participantMessageKey{} },
	}
}
