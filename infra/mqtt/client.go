package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremetrics "github.com/kilianp07/trackdb/core/metrics"
	"github.com/kilianp07/trackdb/core/model"
	coremqtt "github.com/kilianp07/trackdb/core/mqtt"
	"github.com/kilianp07/trackdb/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
// An empty Broker disables the subscriber.
type Config struct {
	Broker     string      `json:"broker"`
	ClientID   string      `json:"client_id"`
	Username   string      `json:"username"`
	Password   string      `json:"password"`
	Topic      string      `json:"topic"`
	QoS        byte        `json:"qos"`
	UseTLS     bool        `json:"use_tls"`
	ClientCert string      `json:"client_cert"`
	ClientKey  string      `json:"client_key"`
	CABundle   string      `json:"ca_bundle"`
	AuthMethod string      `json:"auth_method"`
	LWTTopic   string      `json:"lwt_topic"`
	LWTPayload string      `json:"lwt_payload"`
	TLSConfig  *tls.Config `json:"-"`
}

// SetDefaults fills the topic and generates a client id when none is set.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = coremqtt.DefaultTopic
	}
	if c.ClientID == "" {
		c.ClientID = "trackdb-" + uuid.NewString()
	}
}

// Validate checks the QoS level.
func (c Config) Validate() error {
	if c.QoS > 2 {
		return fmt.Errorf("invalid qos %d", c.QoS)
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Subscriber receives telemetry payloads and forwards the decoded records
// to a sink.
type Subscriber struct {
	cli    pahoClient
	topic  string
	qos    byte
	sink   coremqtt.RecordSink
	rec    coremetrics.Recorder
	logger logger.Logger
}

// NewSubscriber connects to the broker. The telemetry subscription is
// (re)established on every connect.
func NewSubscriber(cfg Config, sink coremqtt.RecordSink, rec coremetrics.Recorder) (*Subscriber, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = coremetrics.NopRecorder{}
	}

	log := logger.New("mqtt_subscriber")
	s := &Subscriber{
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		sink:   sink,
		rec:    rec,
		logger: log,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected, subscribing to %s", s.topic)
		if token := c.Subscribe(s.topic, s.qos, s.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%w: %v", coremqtt.ErrSubscribe, token.Error())
	}
	s.cli = c
	return s, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, 1, false)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no certificates in %s", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	records, err := model.DecodeRecords(msg.Payload())
	if err != nil {
		s.rec.RecordMalformed()
		s.logger.Warnf("malformed payload on %s: %v", msg.Topic(), err)
		return
	}
	unit := unitFromTopic(s.topic, msg.Topic())
	for i := range records {
		if records[i].IMEI == "" {
			records[i].IMEI = unit
		}
	}
	s.logger.Debugf("received %d records on %s", len(records), msg.Topic())
	s.sink.Add(records...)
}

// unitFromTopic returns the topic level matched by the first single-level
// wildcard of filter, or the last level when the filter has none.
func unitFromTopic(filter, topic string) string {
	levels := strings.Split(topic, "/")
	for i, f := range strings.Split(filter, "/") {
		if f == "+" && i < len(levels) {
			return levels[i]
		}
	}
	return levels[len(levels)-1]
}

// Disconnect gracefully closes the MQTT connection.
func (s *Subscriber) Disconnect() {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
}
