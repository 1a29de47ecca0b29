package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"cashflow/internal/ledger"
	"cashflow/internal/log"
)

var errCircuitOpen = errors.New("circuit breaker is open")

// Sender delivers one change message. *Client implements it.
type Sender interface {
	Publish(ctx context.Context, routingKey string, msg ChangeMessage) error
}

// PublisherOptions tunes a Publisher; zero values pick defaults.
type PublisherOptions struct {
	BufferSize   int
	MaxAttempts  int
	FlushTimeout time.Duration
	Logger       *log.Logger
	Now          func() time.Time
	// Sleep waits between attempts; it returns early with ctx's error.
	Sleep func(ctx context.Context, d time.Duration) error
}

// PublisherStats counts what happened to enqueued events.
type PublisherStats struct {
	Published int64
	Failed    int64
	Dropped   int64
	Pending   int
}

// Publisher turns store events into change messages. Enqueue never blocks the
// store: when the buffer is full the event is dropped and its sequence number
// is skipped, so consumers can detect the gap.
type Publisher struct {
	sender     Sender
	routingKey string
	queue      chan ChangeMessage
	seq        atomic.Uint64

	breaker      *breaker
	maxAttempts  int
	flushTimeout time.Duration
	sleep        func(context.Context, time.Duration) error
	logger       *log.Logger

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewPublisher(sender Sender, routingKey string, opts PublisherOptions) *Publisher {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Publisher{
		sender:       sender,
		routingKey:   routingKey,
		queue:        make(chan ChangeMessage, opts.BufferSize),
		breaker:      newBreaker(opts.Now),
		maxAttempts:  opts.MaxAttempts,
		flushTimeout: opts.FlushTimeout,
		sleep:        opts.Sleep,
		logger:       opts.Logger.WithComponent(log.ComponentAMQP),
	}
}

// Enqueue is a ledger.Listener.
func (p *Publisher) Enqueue(ev ledger.Event) {
	msg := NewChangeMessage(p.seq.Add(1), ev)
	select {
	case p.queue <- msg:
	default:
		p.dropped.Add(1)
		p.logger.Warn("Change feed buffer full, dropping event",
			log.FieldCollection, msg.Collection,
			log.FieldEntityID, msg.ID,
			"sequence", msg.Sequence)
	}
}

// Run publishes queued messages until ctx is done, then makes one bounded
// attempt at whatever is still buffered.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Change feed publisher started", "routing_key", p.routingKey)
	for {
		select {
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		case <-ctx.Done():
			p.flush()
			return nil
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), p.flushTimeout)
	defer cancel()

	for {
		select {
		case msg := <-p.queue:
			if err := p.sender.Publish(ctx, p.routingKey, msg); err != nil {
				p.fail(ctx, msg, err)
				continue
			}
			p.published.Add(1)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, msg ChangeMessage) {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if p.breaker.isCircuitOpen() {
			if lastErr == nil {
				lastErr = errCircuitOpen
			}
			if err := p.sleep(ctx, p.breaker.retryAfter()); err != nil {
				p.fail(ctx, msg, errors.Join(lastErr, err))
				return
			}
			continue
		}

		err := p.sender.Publish(ctx, p.routingKey, msg)
		if err == nil {
			p.breaker.recordSuccess()
			p.published.Add(1)
			p.logger.DebugContext(ctx, "Published change message",
				log.FieldCollection, msg.Collection,
				log.FieldEntityID, msg.ID,
				"sequence", msg.Sequence)
			return
		}
		p.breaker.recordFailure()
		lastErr = err

		if attempt+1 < p.maxAttempts {
			if serr := p.sleep(ctx, exponentialBackoff(attempt)); serr != nil {
				p.fail(ctx, msg, errors.Join(lastErr, serr))
				return
			}
		}
	}
	p.fail(ctx, msg, fmt.Errorf("giving up after %d attempts: %w", p.maxAttempts, lastErr))
}

func (p *Publisher) fail(ctx context.Context, msg ChangeMessage, err error) {
	p.failed.Add(1)
	fields := log.NewFields().
		WithOperation(log.OpPublish).
		WithRecord(msg.Collection, msg.ID).
		WithErrorType(log.ErrorTypeNetwork)
	log.NewStructuredLogger(p.logger).LogError(ctx, "Failed to publish change message", err, log.OpPublish, fields)
}

func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Pending:   len(p.queue),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
