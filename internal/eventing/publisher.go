package eventing

import "context"

// OutboxWriter inserts outbox records.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// Publisher writes events to the outbox.
type Publisher struct {
	outbox OutboxWriter
}

// NewPublisher constructs a publisher.
func NewPublisher(outbox OutboxWriter) *Publisher {
	return &Publisher{outbox: outbox}
}

// Publish wraps the event in an envelope and writes it to the outbox.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.outbox == nil {
		return nil
	}
	env, err := BuildEnvelope(event, MetaFromContext(ctx))
	if err != nil {
		return err
	}
	_, err = p.outbox.Insert(ctx, env)
	return err
}
