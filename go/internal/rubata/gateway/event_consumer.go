package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/events"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/outbox"
	"github.com/rs/zerolog/log"
)

type ConsumerConfig struct {
	ConsumerName  string        `yaml:"consumer_name"`
	MaxDeliver    int           `yaml:"max_deliver"`
	AckWait       time.Duration `yaml:"ack_wait"`
	MaxAckPending int           `yaml:"max_ack_pending"`
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		ConsumerName:  "rubata-gateway",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	}
}

// EventBroadcaster receives decoded events.
type EventBroadcaster interface {
	BroadcastEvent(sessionID uuid.UUID, event *RubataEvent)
}

// EventConsumer relays domain events from JetStream to WebSocket clients.
type EventConsumer struct {
	broadcaster EventBroadcaster
	nc          *nats.Conn
	js          jetstream.JetStream
	consumer    jetstream.Consumer
	stream      outbox.JetStreamConfig
	config      ConsumerConfig
}

// NewEventConsumer connects to the stream the outbox relay publishes into.
func NewEventConsumer(ctx context.Context, broadcaster EventBroadcaster, stream outbox.JetStreamConfig, config ConsumerConfig) (*EventConsumer, error) {
	nc, err := nats.Connect(stream.URL, outbox.ConnectOptions(stream)...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{
		broadcaster: broadcaster,
		nc:          nc,
		js:          js,
		stream:      stream,
		config:      config,
	}
	if err := ec.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) consumerConfig() jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Rubata gateway WebSocket consumer",
		FilterSubject: ec.stream.SubjectPrefix + ".>",
		DeliverPolicy: jetstream.DeliverLastPerSubjectPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.stream.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, ec.consumerConfig())
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.stream.StreamName).
		Msg("JetStream consumer ready")

	ec.consumer = consumer
	return nil
}

// Start consumes until ctx is done. Messages are acked once broadcast and
// terminated when they cannot be decoded.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.stream.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := ec.processMessage(msg.Data()); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
				// a malformed message will not get better on redelivery
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to terminate message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (ec *EventConsumer) processMessage(data []byte) error {
	sessionID, event, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	ec.broadcaster.BroadcastEvent(sessionID, event)

	log.Debug().
		Str("event_id", event.ID).
		Str("session_id", sessionID.String()).
		Str("event_type", event.Type).
		Msg("event broadcasted to WebSocket clients")
	return nil
}

func decodeEnvelope(data []byte) (uuid.UUID, *RubataEvent, error) {
	var envelope events.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return uuid.Nil, nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if !events.Known(envelope.EventType) {
		return uuid.Nil, nil, fmt.Errorf("unknown event type: %s", envelope.EventType)
	}
	sessionID, err := uuid.Parse(envelope.SessionID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("parse session ID: %w", err)
	}
	return sessionID, &RubataEvent{
		ID:        envelope.EventID,
		Type:      envelope.EventType,
		Timestamp: envelope.Timestamp,
		Data:      envelope.Payload,
	}, nil
}

func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}

func (ec *EventConsumer) Connected() bool {
	return ec.nc != nil && ec.nc.IsConnected()
}
