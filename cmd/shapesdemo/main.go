// shapesdemo is a small publish/subscribe demo over the middleware: it
// moves a shape around on a keyed topic, the way the classic DDS shapes
// demo does.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tarium/godds/pkg/admin"
	"github.com/tarium/godds/pkg/cache"
	"github.com/tarium/godds/pkg/config"
	"github.com/tarium/godds/pkg/flags"
	"github.com/tarium/godds/pkg/participant"
	"github.com/tarium/godds/pkg/qos"
	"github.com/tarium/godds/pkg/rtps"
	"github.com/tarium/godds/pkg/sample"
)

// ShapeType is the classic demo payload: a colored square moving on a
// 2D canvas, keyed by color.
type ShapeType struct {
	Color string `json:"color"`
	X     int32  `json:"x"`
	Y     int32  `json:"y"`
	Size  int32  `json:"shapesize"`
}

// shapeSerde encodes ShapeType as JSON; the color is the instance key.
type shapeSerde struct{}

func (shapeSerde) Representation() rtps.RepresentationIdentifier {
	return rtps.RepresentationCDRLE
}

func (shapeSerde) Serialize(value interface{}) ([]byte, []byte, error) {
	shape, ok := value.(*ShapeType)
	if !ok {
		return nil, nil, fmt.Errorf("expected *ShapeType, got %T", value)
	}
	payload, err := json.Marshal(shape)
	if err != nil {
		return nil, nil, err
	}
	key, err := json.Marshal(shape.Color)
	if err != nil {
		return nil, nil, err
	}
	return payload, key, nil
}

func (shapeSerde) SerializeKey(key interface{}) ([]byte, error) {
	return json.Marshal(key)
}

func (shapeSerde) Deserialize(_ rtps.RepresentationIdentifier, payload []byte) (interface{}, error) {
	var shape ShapeType
	if err := json.Unmarshal(payload, &shape); err != nil {
		return nil, err
	}
	return &shape, nil
}

func (shapeSerde) DeserializeKey(_ rtps.RepresentationIdentifier, key []byte) (interface{}, error) {
	var color string
	if err := json.Unmarshal(key, &color); err != nil {
		return nil, err
	}
	return color, nil
}

type options struct {
	configPath    string
	domainID      uint16
	participantID uint16
	topic         string
	color         string
	adminAddr     string
	logLevel      string
}

// applyConfig layers the config file under the command line: flags the
// user did not set fall back to file values.
func (opts *options) applyConfig(cmd *cobra.Command) error {
	if opts.configPath == "" {
		return nil
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("domain") {
		opts.domainID = cfg.DomainID
	}
	if !cmd.Flags().Changed("participant") && cfg.ParticipantID >= 0 {
		opts.participantID = uint16(cfg.ParticipantID)
	}
	if !cmd.Flags().Changed("admin-addr") {
		opts.adminAddr = cfg.AdminAddr
	}
	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		opts.logLevel = cfg.LogLevel
	}
	return nil
}

func main() {
	opts := options{}

	root := &cobra.Command{
		Use:   "shapesdemo",
		Short: "Publish or subscribe to the DDS shapes topic",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.applyConfig(cmd); err != nil {
				return err
			}
			flags.SetLogLevel(opts.logLevel)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "participant config file")
	root.PersistentFlags().Uint16Var(&opts.domainID, "domain", 0, "DDS domain id")
	root.PersistentFlags().Uint16Var(&opts.participantID, "participant", 0, "participant id within the domain")
	root.PersistentFlags().StringVar(&opts.topic, "topic", "Square", "topic name")
	root.PersistentFlags().StringVar(&opts.color, "color", "BLUE", "shape color (instance key)")
	root.PersistentFlags().StringVar(&opts.adminAddr, "admin-addr", "", "admin server address (e.g. :9990), empty to disable")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level")

	root.AddCommand(publishCmd(&opts), subscribeCmd(&opts))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newParticipant(opts *options) (*participant.DomainParticipant, error) {
	if opts.adminAddr != "" {
		go func() {
			log.Infof("starting admin server on %s", opts.adminAddr)
			if err := admin.NewServer(opts.adminAddr, true).ListenAndServe(); err != nil {
				log.Errorf("admin server: %s", err)
			}
		}()
	}

	p, err := participant.New(participant.Config{
		DomainID:      opts.domainID,
		ParticipantID: opts.participantID,
	}, log.NewEntry(log.StandardLogger()))
	if err != nil {
		return nil, err
	}
	p.CreateTopic(opts.topic, "ShapeType", cache.WithKey,
		qos.NewBuilder().
			Reliability(qos.Reliability{Kind: qos.Reliable, MaxBlockingTime: rtps.DurationFrom(100 * time.Millisecond)}).
			History(qos.History{Kind: qos.KeepLast, Depth: 3}).
			Build())
	return p, nil
}

func publishCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Write a moving shape once a second",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newParticipant(opts)
			if err != nil {
				return err
			}
			defer p.Close()

			writer, err := p.CreateWriter(opts.topic, shapeSerde{},
				qos.NewBuilder().
					Reliability(qos.Reliability{Kind: qos.Reliable, MaxBlockingTime: rtps.DurationFrom(100 * time.Millisecond)}).
					History(qos.History{Kind: qos.KeepLast, Depth: 3}).
					Build())
			if err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

			shape := ShapeType{Color: opts.color, X: 0, Y: 0, Size: 30}
			for {
				select {
				case <-stop:
					log.Info("disposing shape and leaving")
					if err := writer.Dispose(shape.Color); err != nil {
						log.Errorf("disposing: %s", err)
					}
					return nil
				case <-ticker.C:
					shape.X = (shape.X + 5) % 240
					shape.Y = (shape.Y + 7) % 270
					if err := writer.Write(&shape); err != nil {
						log.Errorf("writing shape: %s", err)
						continue
					}
					log.Infof("wrote %s at (%d,%d)", shape.Color, shape.X, shape.Y)
				}
			}
		},
	}
}

func subscribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe",
		Short: "Take and print shapes as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newParticipant(opts)
			if err != nil {
				return err
			}
			defer p.Close()

			reader, err := p.CreateReader(opts.topic, shapeSerde{},
				qos.NewBuilder().
					Reliability(qos.Reliability{Kind: qos.Reliable, MaxBlockingTime: rtps.DurationFrom(100 * time.Millisecond)}).
					Build())
			if err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			for {
				select {
				case <-stop:
					return nil
				case <-reader.Wakeup():
					samples, err := reader.Take(10, sample.NotReadCondition())
					if err != nil {
						log.Errorf("taking shapes: %s", err)
						continue
					}
					for _, s := range samples {
						if !s.Valid() {
							log.Infof("instance %v is gone (state %#x)", s.KeyValue, s.Info.InstanceState)
							continue
						}
						shape := s.Value.(*ShapeType)
						log.Infof("%s at (%d,%d) size %d from %s",
							shape.Color, shape.X, shape.Y, shape.Size, s.Info.PublicationHandle)
					}
				}
			}
		},
	}
}
