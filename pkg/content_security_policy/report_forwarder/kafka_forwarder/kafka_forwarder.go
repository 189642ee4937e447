// Package kafka_forwarder publishes violation reports to a Kafka topic.
package kafka_forwarder

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/report_forwarder"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
)

const DefaultTopic = "csp.violations.v1"

type Forwarder struct {
	Producer sarama.SyncProducer
	Topic    string
}

// NewSaramaConfig returns the producer configuration used by New. A positive
// timeout bounds the broker acknowledgement and each network operation.
func NewSaramaConfig(timeout time.Duration) *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = "csp_proxy"
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 0
	if timeout > 0 {
		config.Producer.Timeout = timeout
		config.Net.DialTimeout = timeout
		config.Net.ReadTimeout = timeout
		config.Net.WriteTimeout = timeout
	}
	return config
}

// New connects a synchronous producer to the brokers.
func New(brokers []string, topic string, timeout time.Duration) (*Forwarder, error) {
	if len(brokers) == 0 {
		return nil, motmedelErrors.NewWithTrace(fmt.Errorf("%w: kafka brokers", motmedelErrors.ErrZeroValue))
	}

	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig(timeout))
	if err != nil {
		return nil, motmedelErrors.New(fmt.Errorf("sarama new sync producer: %w", err), brokers)
	}

	return NewWithProducer(producer, topic), nil
}

func NewWithProducer(producer sarama.SyncProducer, topic string) *Forwarder {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Forwarder{Producer: producer, Topic: topic}
}

// Forward publishes the report keyed by its digest, so duplicates that slip
// past separate indexes land in the same partition.
func (forwarder *Forwarder) Forward(ctx context.Context, report []byte) error {
	if forwarder.Producer == nil {
		return motmedelErrors.NewWithTrace(fmt.Errorf("%w: kafka producer", motmedelErrors.ErrZeroValue))
	}
	if err := ctx.Err(); err != nil {
		return motmedelErrors.New(err)
	}

	sum := sha256.Sum256(report)
	message := &sarama.ProducerMessage{
		Topic: forwarder.Topic,
		Key:   sarama.StringEncoder(base64.RawURLEncoding.EncodeToString(sum[:])),
		Value: sarama.ByteEncoder(report),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte(report_forwarder.ContentType)},
		},
	}

	// The producer takes no context; the send is abandoned, not aborted, when
	// the context ends first.
	errChan := make(chan error, 1)
	go func() {
		_, _, err := forwarder.Producer.SendMessage(message)
		errChan <- err
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return motmedelErrors.New(fmt.Errorf("sarama send message: %w", err), forwarder.Topic)
		}
		return nil
	case <-ctx.Done():
		return motmedelErrors.New(fmt.Errorf("sarama send message: %w", ctx.Err()), forwarder.Topic)
	}
}

func (forwarder *Forwarder) Close() error {
	if forwarder.Producer == nil {
		return nil
	}
	if err := forwarder.Producer.Close(); err != nil {
		return fmt.Errorf("sarama producer close: %w", err)
	}
	return nil
}
