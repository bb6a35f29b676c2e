package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"stewardship-cloud/internal/eventing"
	eventingrepo "stewardship-cloud/internal/eventing/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type batchCompleted struct {
	SchemeID   string    `json:"scheme_id"`
	BatchID    string    `json:"batch_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (batchCompleted) EventName() string { return "payments.batch_completed" }

type recordingSink struct {
	delivered []eventing.Envelope
	failFirst bool
}

func (s *recordingSink) Deliver(ctx context.Context, env eventing.Envelope) error {
	_ = ctx
	if s.failFirst {
		s.failFirst = false
		return errors.New("downstream unavailable")
	}
	s.delivered = append(s.delivered, env)
	return nil
}

func TestOutboxRelay_DeliversPendingOnce(t *testing.T) {
	ctx := eventing.WithCorrelationID(context.Background(), "corr-1")
	outbox := eventing.NewMemoryOutbox()
	publisher := eventing.NewPublisher(outbox)

	occurred := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	if err := publisher.Publish(ctx, batchCompleted{SchemeID: "packaging-za", BatchID: "b-1", OccurredAt: occurred}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sink := &recordingSink{}
	dispatcher := eventing.NewDispatcher(outbox, sink, nil)
	sent, err := dispatcher.Dispatch(ctx, 10)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent != 1 || len(sink.delivered) != 1 {
		t.Fatalf("sent = %d delivered = %d", sent, len(sink.delivered))
	}
	env := sink.delivered[0]
	if env.EventType != "payments.batch_completed" {
		t.Fatalf("event type = %s", env.EventType)
	}
	if env.SchemeID != "packaging-za" || env.CorrelationID != "corr-1" {
		t.Fatalf("envelope meta = %+v", env)
	}
	if !env.OccurredAt.Equal(occurred) {
		t.Fatalf("occurred at = %s", env.OccurredAt)
	}

	sent, err = dispatcher.Dispatch(ctx, 10)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected no redelivery, sent %d", sent)
	}
}

func TestOutboxRelay_FailedDeliveryIsMarked(t *testing.T) {
	ctx := context.Background()
	outbox := eventing.NewMemoryOutbox()
	publisher := eventing.NewPublisher(outbox)
	if err := publisher.Publish(ctx, batchCompleted{SchemeID: "s", BatchID: "b-2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	sink := &recordingSink{failFirst: true}
	dispatcher := eventing.NewDispatcher(outbox, sink, nil)
	sent, err := dispatcher.Dispatch(ctx, 10)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent = %d", sent)
	}
	pending, _ := outbox.ListPending(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("failed record still pending: %d", len(pending))
	}
}

func TestOutboxStore_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if !tableExists(db, "event_outbox") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM event_outbox WHERE scheme_id = 'scheme-outbox-test'")

	store := eventingrepo.NewOutboxStore(db, eventingrepo.WithMaxAttempts(1))
	publisher := eventing.NewPublisher(store)
	if err := publisher.Publish(ctx, batchCompleted{SchemeID: "scheme-outbox-test", BatchID: "b-pg"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	sink := &recordingSink{}
	sent, err := eventing.NewDispatcher(store, sink, nil).Dispatch(ctx, 100)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent < 1 {
		t.Fatalf("sent = %d", sent)
	}
	var status string
	if err := db.QueryRowContext(ctx, "SELECT status FROM event_outbox WHERE scheme_id = 'scheme-outbox-test'").Scan(&status); err != nil {
		t.Fatalf("load status: %v", err)
	}
	if status != "sent" {
		t.Fatalf("status = %s", status)
	}
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", name).Scan(&exists)
	return err == nil && exists
}
