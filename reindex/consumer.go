package reindex

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/fansearch/core"
)

// NATS subjects carrying member-change events.
const (
	SubjectCreated  = "member.entity.created"
	SubjectUpdated  = "member.entity.updated"
	SubjectDeleted  = "member.entity.deleted"
	subjectWildcard = "member.entity.*"

	queueGroup   = "fansearch-reindex"
	durableName  = "fansearch-reindex"
	defaultDedup = 4096
)

// reindexFields is the allow-list of member fields whose change requires
// re-embedding. Changes outside this set are cosmetic metadata updates and
// must not trigger a provider call.
var reindexFields = map[string]bool{
	"display_name":        true,
	"localized_name":      true,
	"description":         true,
	"tags":                true,
	"personality_summary": true,
	"active":              true,
}

// triggersReindex reports whether any changed field is on the allow-list.
func triggersReindex(changedFields []string) bool {
	for _, field := range changedFields {
		if reindexFields[field] {
			return true
		}
	}
	return false
}

// Consumer subscribes to member-change events and keeps the embedding store
// consistent. Delivery is at-least-once; processing is idempotent through
// the upsert's replace semantics, with a short-lived seen-event-ID cache as
// a fast path against duplicate provider calls.
type Consumer struct {
	indexer    *Indexer
	pool       *ants.Pool
	seen       *expirable.LRU[string, struct{}]
	sub        *nats.Subscription
	maxRetries int
	retryDelay time.Duration
	failed     func(core.ReindexEvent, error)
	logger     *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer) error

// WithConsumerLogger sets a custom logger.
// Default is slog.Default().
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithPoolSize sets the worker pool size for concurrent event processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) ConsumerOption {
	return func(c *Consumer) error {
		if size < 1 {
			size = 1
		}
		if c.pool != nil {
			c.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		c.pool = pool
		return nil
	}
}

// WithConsumerRetries sets the bounded retry policy for event processing.
func WithConsumerRetries(maxRetries int, retryDelay time.Duration) ConsumerOption {
	return func(c *Consumer) error {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if retryDelay > 0 {
			c.retryDelay = retryDelay
		}
		return nil
	}
}

// WithFailedHandler sets a hook invoked after an event exhausts its retries
// and is dropped. A dead-letter publisher can be attached here.
func WithFailedHandler(failed func(core.ReindexEvent, error)) ConsumerOption {
	return func(c *Consumer) error {
		c.failed = failed
		return nil
	}
}

// WithDedupWindow sets the size and TTL of the seen-event-ID cache.
func WithDedupWindow(size int, ttl time.Duration) ConsumerOption {
	return func(c *Consumer) error {
		if size < 1 {
			size = defaultDedup
		}
		c.seen = expirable.NewLRU[string, struct{}](size, nil, ttl)
		return nil
	}
}

// NewConsumer creates a Consumer driving the given indexer.
func NewConsumer(indexer *Indexer, opts ...ConsumerOption) (*Consumer, error) {
	if indexer == nil {
		return nil, ErrIndexerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	c := &Consumer{
		indexer:    indexer,
		pool:       pool,
		seen:       expirable.NewLRU[string, struct{}](defaultDedup, nil, 10*time.Minute),
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     slog.Default().With("component", "reindex-consumer"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			c.pool.Release()
			return nil, err
		}
	}
	return c, nil
}

// Subscribe binds the consumer to the member-change subjects on a JetStream
// enabled connection. Explicit acks keep the delivery contract at-least-once.
func (c *Consumer) Subscribe(nc *nats.Conn) error {
	js, err := nc.JetStream()
	if err != nil {
		return core.E(core.KindConnection, "reindex.Subscribe", err)
	}

	sub, err := js.QueueSubscribe(subjectWildcard, queueGroup, c.handleMsg,
		nats.Durable(durableName),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		return core.E(core.KindConnection, "reindex.Subscribe", err)
	}

	c.sub = sub
	c.logger.Info("subscribed to member change events", "subject", subjectWildcard, "queue", queueGroup)
	return nil
}

// Stop unsubscribes and releases the worker pool. In-flight events finish
// processing.
func (c *Consumer) Stop() error {
	var err error
	if c.sub != nil {
		err = c.sub.Drain()
		c.sub = nil
	}
	c.pool.Release()
	return err
}

// handleMsg parses one broker message and schedules it on the worker pool.
func (c *Consumer) handleMsg(msg *nats.Msg) {
	var event core.ReindexEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// A poisoned payload will never parse; redelivery cannot help.
		c.logger.Error("dropping undecodable event", "subject", msg.Subject, "err", err)
		c.ack(msg)
		return
	}

	err := c.pool.Submit(func() {
		c.process(event)
		c.ack(msg)
	})
	if err != nil {
		// Pool saturated or released; leave the message unacked for redelivery.
		c.logger.Warn("failed to schedule event, requesting redelivery", "eventID", event.EventID, "err", err)
		if nakErr := msg.Nak(); nakErr != nil {
			c.logger.Warn("failed to nak message", "err", nakErr)
		}
	}
}

// process runs one event through HandleEvent with bounded retries. After the
// retry budget the event is logged as failed and dropped; the failure hook
// is the attachment point for a dead-letter queue.
func (c *Consumer) process(event core.ReindexEvent) {
	ctx := context.Background()
	err := core.RetryWithBackoff(ctx, func() error {
		return c.HandleEvent(ctx, event)
	}, c.maxRetries, c.retryDelay)
	if err != nil {
		c.logger.Error("event processing failed, dropping event",
			"eventID", event.EventID, "memberID", event.MemberID, "type", event.EventType, "err", err)
		if c.failed != nil {
			c.failed(event, err)
		}
	}
}

// HandleEvent processes one member-change event.
//
// created events always trigger an initial (non-forced) indexing. updated
// events re-embed only when a reindex-triggering field changed; otherwise
// the event is acknowledged but not acted upon. deleted events remove the
// embedding record and invalidate related cache entries. Processing the
// same event twice produces the same end state.
func (c *Consumer) HandleEvent(ctx context.Context, event core.ReindexEvent) error {
	if err := core.ValidateEvent(&event); err != nil {
		return err
	}

	if event.EventID != "" && c.seen.Contains(event.EventID) {
		c.logger.Debug("skipping duplicate event", "eventID", event.EventID)
		return nil
	}

	switch event.EventType {
	case core.EventCreated:
		if _, err := c.indexer.Index(ctx, event.MemberID, false); err != nil {
			return err
		}
	case core.EventUpdated:
		if !triggersReindex(event.ChangedFields) {
			c.logger.Debug("no reindex-triggering fields changed",
				"memberID", event.MemberID, "changedFields", event.ChangedFields)
			c.remember(event.EventID)
			return nil
		}
		if _, err := c.indexer.Index(ctx, event.MemberID, false); err != nil {
			return err
		}
	case core.EventDeleted:
		if err := c.indexer.Remove(ctx, event.MemberID); err != nil {
			return err
		}
	}

	c.remember(event.EventID)
	return nil
}

func (c *Consumer) remember(eventID string) {
	if eventID != "" {
		c.seen.Add(eventID, struct{}{})
	}
}

func (c *Consumer) ack(msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		c.logger.Warn("failed to ack message", "subject", msg.Subject, "err", err)
	}
}
