package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
	"github.com/twmb/franz-go/plugin/kprom"

	"github.com/athuldev13/Loki/pkg/histogram"
)

// KafkaConfig holds Kafka publisher configuration.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	CreateTopic   bool
	SASLUsername  string
	SASLPassword  string
	SASLMechanism string
}

// Validate checks if the publisher configuration is valid.
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	return nil
}

// SetBrokersFromString parses a comma-separated list of brokers.
func (c *KafkaConfig) SetBrokersFromString(brokers string) {
	parts := strings.Split(brokers, ",")
	c.Brokers = make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			c.Brokers = append(c.Brokers, trimmed)
		}
	}
}

// Kafka publishes merged histograms as JSON records keyed by identity.
type Kafka struct {
	client *kgo.Client
	cfg    KafkaConfig
	logger log.Logger
}

// NewKafka creates a Kafka publisher. Client metrics are registered on reg
// when it is non-nil.
func NewKafka(cfg KafkaConfig, reg prometheus.Registerer, logger log.Logger) (*Kafka, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID("histfill"),
		kgo.DialTimeout(10 * time.Second),
		kgo.RequestTimeoutOverhead(10 * time.Second),
	}

	if reg != nil {
		opts = append(opts, kgo.WithHooks(kprom.NewMetrics("histfill_kafka", kprom.Registerer(reg))))
	}

	if cfg.SASLUsername != "" && cfg.SASLPassword != "" {
		saslOpt, err := parseSASLMechanism(cfg.SASLMechanism, cfg.SASLUsername, cfg.SASLPassword)
		if err != nil {
			return nil, fmt.Errorf("invalid SASL mechanism: %w", err)
		}
		opts = append(opts, saslOpt)
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Kafka{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func parseSASLMechanism(mechanism, username, password string) (kgo.Opt, error) {
	switch mechanism {
	case "PLAIN":
		return kgo.SASL(plain.Auth{
			User: username,
			Pass: password,
		}.AsMechanism()), nil
	case "SCRAM-SHA-256":
		return kgo.SASL(scram.Auth{
			User: username,
			Pass: password,
		}.AsSha256Mechanism()), nil
	case "SCRAM-SHA-512":
		return kgo.SASL(scram.Auth{
			User: username,
			Pass: password,
		}.AsSha512Mechanism()), nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s (supported: PLAIN, SCRAM-SHA-256, SCRAM-SHA-512)", mechanism)
	}
}

// EnsureTopic creates the configured topic if it does not exist yet.
// Only called when CreateTopic is set.
func (k *Kafka) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(k.client)

	topics, err := adm.ListTopics(ctx, k.cfg.Topic)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if topics.Has(k.cfg.Topic) {
		return nil
	}

	if _, err := adm.CreateTopics(ctx, 1, 1, nil, k.cfg.Topic); err != nil {
		return fmt.Errorf("create topic %s: %w", k.cfg.Topic, err)
	}
	level.Info(k.logger).Log("msg", "created topic", "topic", k.cfg.Topic)
	return nil
}

// Publish produces one record per histogram and waits for all acks.
func (k *Kafka) Publish(ctx context.Context, hists []*histogram.Histogram) error {
	if k.cfg.CreateTopic {
		if err := k.EnsureTopic(ctx); err != nil {
			return err
		}
	}

	records := make([]*kgo.Record, 0, len(hists))
	for _, h := range hists {
		payload, err := MarshalPayload(h)
		if err != nil {
			return fmt.Errorf("marshal histogram %q: %w", h.Name, err)
		}
		records = append(records, &kgo.Record{
			Topic: k.cfg.Topic,
			Key:   []byte(h.Name),
			Value: payload,
		})
	}

	if err := k.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce: %w", err)
	}

	level.Info(k.logger).Log("msg", "histograms published", "topic", k.cfg.Topic, "count", len(records))
	return nil
}

// MarshalPayload encodes one histogram as the JSON record value.
func MarshalPayload(h *histogram.Histogram) ([]byte, error) {
	return json.Marshal(toRecord(h))
}

// UnmarshalPayload decodes a record value back into a histogram.
func UnmarshalPayload(data []byte) (*histogram.Histogram, error) {
	rec := histogramRecord{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return fromRecord(rec)
}

// Close closes the Kafka client.
func (k *Kafka) Close() {
	if k.client != nil {
		k.client.Close()
	}
}
