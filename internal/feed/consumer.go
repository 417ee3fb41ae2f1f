package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type ConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "CHICKEN_EVENTS",
		ConsumerName:  "chicken-gateway",
		SubjectFilter: "chicken.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

type handlerKey struct {
	gameID uuid.UUID
	topic  gamesync.Topic
}

// Consumer reads change events off the bus and dispatches them to the
// engine subscriptions registered per game and topic. It implements
// gamesync.Feed.
type Consumer struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   ConsumerConfig

	mu       sync.Mutex
	handlers map[handlerKey]func(gamesync.Topic)
}

var _ gamesync.Feed = (*Consumer)(nil)

func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	c := &Consumer{
		nc:       nc,
		js:       js,
		config:   cfg,
		handlers: make(map[handlerKey]func(gamesync.Topic)),
	}

	if err := c.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return c, nil
}

func (c *Consumer) ensureConsumer(ctx context.Context) error {
	stream, err := c.js.Stream(ctx, c.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          c.config.ConsumerName,
		Durable:       c.config.ConsumerName,
		Description:   "Gateway change-event consumer",
		FilterSubject: c.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    c.config.MaxDeliver,
		AckWait:       c.config.AckWait,
		MaxAckPending: c.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, c.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", c.config.ConsumerName).
			Str("stream", c.config.StreamName).
			Msg("created JetStream consumer")
	} else {
		log.Info().
			Str("consumer", c.config.ConsumerName).
			Str("stream", c.config.StreamName).
			Msg("using existing JetStream consumer")
	}

	c.consumer = consumer
	return nil
}

// Start consumes events until the context is cancelled. Events with no
// registered handler are acknowledged and dropped.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", c.config.ConsumerName).
		Str("stream", c.config.StreamName).
		Msg("starting change-event consumer")

	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		if err := c.processMessage(msg); err != nil {
			log.Error().
				Err(err).
				Str("subject", msg.Subject()).
				Msg("failed to process message")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error().Err(nakErr).Msg("failed to NAK message")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	log.Info().Msg("change-event consumer shutting down")
	return nil
}

func (c *Consumer) processMessage(msg jetstream.Msg) error {
	var event ChangeEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		return fmt.Errorf("unmarshal change event: %w", err)
	}
	c.dispatch(event)
	return nil
}

func (c *Consumer) dispatch(event ChangeEvent) {
	c.mu.Lock()
	handler := c.handlers[handlerKey{gameID: event.GameID, topic: event.Topic}]
	c.mu.Unlock()

	if handler != nil {
		handler(event.Topic)
	}
}

// Subscribe registers a per-game, per-topic handler. Subscribing twice for
// the same key replaces the earlier handler.
func (c *Consumer) Subscribe(ctx context.Context, gameID uuid.UUID, topic gamesync.Topic, onChange func(gamesync.Topic)) (gamesync.Subscription, error) {
	if onChange == nil {
		return nil, fmt.Errorf("nil change handler for topic %s", topic)
	}
	key := handlerKey{gameID: gameID, topic: topic}

	c.mu.Lock()
	c.handlers[key] = onChange
	c.mu.Unlock()

	log.Debug().
		Str("game_id", gameID.String()).
		Str("topic", string(topic)).
		Msg("feed subscription registered")

	return &consumerSubscription{consumer: c, key: key}, nil
}

type consumerSubscription struct {
	consumer *Consumer
	key      handlerKey
}

func (s *consumerSubscription) Unsubscribe() error {
	s.consumer.mu.Lock()
	delete(s.consumer.handlers, s.key)
	s.consumer.mu.Unlock()
	return nil
}

func (c *Consumer) Stop() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
