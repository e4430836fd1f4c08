package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/webscanhq/job-triggers/internal/dispatch"
)

// receiver is the part of pubsub.Subscription the subscriber needs.
type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Subscriber runs one Receive loop per trigger in pull mode. Messages are
// acked on successful dispatch and nacked otherwise, so redelivery stays
// with Pub/Sub.
type Subscriber struct {
	client     *pubsub.Client
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

func New(client *pubsub.Client, d *dispatch.Dispatcher, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		client:     client,
		dispatcher: d,
		logger:     logger.With("component", "subscriber"),
	}
}

// Run blocks until ctx is cancelled or a Receive loop fails. Every trigger
// must carry a subscription ID.
func (s *Subscriber) Run(ctx context.Context, triggers []dispatch.Trigger) error {
	for _, t := range triggers {
		if t.Subscription == "" {
			return fmt.Errorf("trigger %s has no subscription configured", t.Name)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(triggers))

	for _, t := range triggers {
		sub := s.client.Subscription(t.Subscription)
		s.logger.Info("receiving", "trigger", t.Name, "subscription", t.Subscription)

		wg.Add(1)
		go func(t dispatch.Trigger, sub receiver) {
			defer wg.Done()
			if err := s.receive(ctx, t, sub); err != nil {
				errCh <- fmt.Errorf("receiving %s: %w", t.Subscription, err)
				cancel()
			}
		}(t, sub)
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (s *Subscriber) receive(ctx context.Context, t dispatch.Trigger, sub receiver) error {
	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if _, err := s.dispatcher.Dispatch(ctx, t, m.Data); err != nil {
			s.logger.Error("dispatch failed", "trigger", t.Name, "message", m.ID, "error", err)
			m.Nack()
			return
		}
		m.Ack()
	})
}
