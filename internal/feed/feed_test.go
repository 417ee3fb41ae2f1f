package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mleroy14/chickenhunt/internal/gamesync"
)

type recordingPublisher struct {
	events []ChangeEvent
	fail   int // fail this many publishes before succeeding
}

func (p *recordingPublisher) Publish(ctx context.Context, event ChangeEvent) error {
	if p.fail > 0 {
		p.fail--
		return errors.New("bus unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func TestRelayHandleNotification(t *testing.T) {
	pub := &recordingPublisher{}
	r := &Relay{publisher: pub, cfg: DefaultRelayConfig()}

	gameID := uuid.New()
	payload := `{"game_id":"` + gameID.String() + `","topic":"message_inserted"}`
	if err := r.handleNotification(context.Background(), payload); err != nil {
		t.Fatalf("handleNotification: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	got := pub.events[0]
	if got.GameID != gameID || got.Topic != gamesync.TopicMessageInserted {
		t.Fatalf("published event = %+v", got)
	}
}

func TestRelayRejectsMalformedPayload(t *testing.T) {
	pub := &recordingPublisher{}
	r := &Relay{publisher: pub, cfg: DefaultRelayConfig()}

	if err := r.handleNotification(context.Background(), "not-json"); err == nil {
		t.Fatal("malformed payload accepted")
	}
	if len(pub.events) != 0 {
		t.Fatal("malformed payload reached the bus")
	}
}

func TestRelayPublishRetries(t *testing.T) {
	cfg := DefaultRelayConfig()
	cfg.RetryDelay = 0
	pub := &recordingPublisher{fail: 2}
	r := &Relay{publisher: pub, cfg: cfg}

	event := ChangeEvent{ID: uuid.New(), GameID: uuid.New(), Topic: gamesync.TopicGameUpdated}
	if err := r.publishWithRetry(context.Background(), event); err != nil {
		t.Fatalf("publishWithRetry: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events after retries, want 1", len(pub.events))
	}
}

func TestRelayPublishExhaustsRetries(t *testing.T) {
	cfg := DefaultRelayConfig()
	cfg.RetryDelay = 0
	cfg.MaxRetries = 2
	pub := &recordingPublisher{fail: 10}
	r := &Relay{publisher: pub, cfg: cfg}

	event := ChangeEvent{ID: uuid.New(), GameID: uuid.New(), Topic: gamesync.TopicGameUpdated}
	if err := r.publishWithRetry(context.Background(), event); err == nil {
		t.Fatal("exhausted retries reported success")
	}
}

func TestConsumerDispatchRouting(t *testing.T) {
	c := &Consumer{handlers: make(map[handlerKey]func(gamesync.Topic))}
	gameA, gameB := uuid.New(), uuid.New()

	var gotA, gotB []gamesync.Topic
	subA, err := c.Subscribe(context.Background(), gameA, gamesync.TopicTeamChanged, func(tp gamesync.Topic) {
		gotA = append(gotA, tp)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := c.Subscribe(context.Background(), gameB, gamesync.TopicTeamChanged, func(tp gamesync.Topic) {
		gotB = append(gotB, tp)
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	c.dispatch(ChangeEvent{GameID: gameA, Topic: gamesync.TopicTeamChanged})
	c.dispatch(ChangeEvent{GameID: gameA, Topic: gamesync.TopicGameUpdated}) // no handler
	c.dispatch(ChangeEvent{GameID: gameB, Topic: gamesync.TopicTeamChanged})

	if len(gotA) != 1 || len(gotB) != 1 {
		t.Fatalf("dispatch counts = %d/%d, want 1/1", len(gotA), len(gotB))
	}

	if err := subA.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	c.dispatch(ChangeEvent{GameID: gameA, Topic: gamesync.TopicTeamChanged})
	if len(gotA) != 1 {
		t.Fatal("handler fired after unsubscribe")
	}
}

func TestConsumerSubscribeRejectsNilHandler(t *testing.T) {
	c := &Consumer{handlers: make(map[handlerKey]func(gamesync.Topic))}
	if _, err := c.Subscribe(context.Background(), uuid.New(), gamesync.TopicGameUpdated, nil); err == nil {
		t.Fatal("nil handler accepted")
	}
}
