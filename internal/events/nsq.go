package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"
)

// MessageHandler processes one message body. Returning an error requeues
// the message.
type MessageHandler func(ctx context.Context, body []byte) error

// Producer publishes JSON messages to NSQ topics.
type Producer struct {
	producer *nsq.Producer
	logger   logrus.FieldLogger
}

// NewProducer creates a producer and pings nsqd to check connectivity.
func NewProducer(address string, logger logrus.FieldLogger) (*Producer, error) {
	producer, err := nsq.NewProducer(address, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ producer: %w", err)
	}
	producer.SetLogger(newNSQLogger(logger), nsq.LogLevelWarning)

	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("failed to ping NSQ daemon: %w", err)
	}

	return &Producer{producer: producer, logger: logger}, nil
}

// Publish sends message to topic as JSON.
func (p *Producer) Publish(topic string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := p.producer.Publish(topic, body); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.WithField("topic", topic).Debug("Published message")
	return nil
}

// Stop gracefully stops the producer.
func (p *Producer) Stop() {
	p.producer.Stop()
}

// Consumer consumes one topic on one channel.
type Consumer struct {
	consumer *nsq.Consumer
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Topic       string
	Channel     string
	MaxInFlight int
	NewRelic    *newrelic.Application // Optional
	Logger      logrus.FieldLogger
}

// NewConsumer creates a consumer running handler for every message.
// Each message is processed inside a New Relic background transaction when
// an application is configured.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler) (*Consumer, error) {
	nsqConfig := nsq.NewConfig()
	if cfg.MaxInFlight > 0 {
		nsqConfig.MaxInFlight = cfg.MaxInFlight
	}

	consumer, err := nsq.NewConsumer(cfg.Topic, cfg.Channel, nsqConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ consumer: %w", err)
	}
	consumer.SetLogger(newNSQLogger(cfg.Logger), nsq.LogLevelWarning)

	log := cfg.Logger.WithFields(logrus.Fields{"topic": cfg.Topic, "channel": cfg.Channel})

	consumer.AddHandler(nsq.HandlerFunc(func(message *nsq.Message) error {
		message.Touch()

		ctx := context.Background()
		if cfg.NewRelic != nil {
			txn := cfg.NewRelic.StartTransaction("nsq/" + cfg.Topic)
			defer txn.End()
			ctx = newrelic.NewContext(ctx, txn)
		}

		if err := handler(ctx, message.Body); err != nil {
			log.WithError(err).WithField("attempts", message.Attempts).Warn("Requeueing message")
			return err
		}
		return nil
	}))

	return &Consumer{consumer: consumer}, nil
}

// ConnectToNSQD connects the consumer directly to an nsqd instance.
func (c *Consumer) ConnectToNSQD(address string) error {
	if err := c.consumer.ConnectToNSQD(address); err != nil {
		return fmt.Errorf("failed to connect to NSQ daemon: %w", err)
	}
	return nil
}

// ConnectToLookupd connects the consumer to nsqlookupd instances.
func (c *Consumer) ConnectToLookupd(addresses []string) error {
	for _, addr := range addresses {
		if err := c.consumer.ConnectToNSQLookupd(addr); err != nil {
			return fmt.Errorf("failed to connect to NSQ lookupd at %s: %w", addr, err)
		}
	}
	return nil
}

// Stop stops the consumer and waits for in-flight messages.
func (c *Consumer) Stop() {
	c.consumer.Stop()
	<-c.consumer.StopChan
}

// nsqLogger routes go-nsq's internal log lines into logrus.
type nsqLogger struct {
	logger logrus.FieldLogger
}

func newNSQLogger(logger logrus.FieldLogger) *nsqLogger {
	return &nsqLogger{logger: logger.WithField("component", "nsq")}
}

func (l *nsqLogger) Output(_ int, s string) error {
	switch {
	case strings.HasPrefix(s, "ERR"):
		l.logger.Error(s)
	case strings.HasPrefix(s, "WRN"):
		l.logger.Warn(s)
	default:
		l.logger.Debug(s)
	}
	return nil
}
