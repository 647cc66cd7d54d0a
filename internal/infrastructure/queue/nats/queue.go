// Package nats carries enrichment and thumbnail tasks between the API and
// the worker pool. Delivery is at-least-once: failed handlers re-publish
// the task with an incremented attempt counter until the retry budget is
// spent.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/resilience"
)

const workerGroup = "vault-workers"

type Queue struct {
	conn             *nats.Conn
	enrichSubject    string
	thumbnailSubject string
	maxRetries       int
	retryBackoff     time.Duration
	executor         *resilience.Executor
	onRetry          func(subject string)
	logger           *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	MaxRetries           int
	RetryBackoff         time.Duration
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// OnRetry is invoked with the task subject each time a failed task is
	// scheduled for redelivery.
	OnRetry func(subject string)
	Logger  *slog.Logger
}

func New(url, enrichSubject, thumbnailSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	maxRetries := options.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryBackoff := options.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = 5 * time.Second
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("ai-file-vault"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:             conn,
		enrichSubject:    enrichSubject,
		thumbnailSubject: thumbnailSubject,
		maxRetries:       maxRetries,
		retryBackoff:     retryBackoff,
		executor:         options.ResilienceExecutor,
		onRetry:          options.OnRetry,
		logger:           logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Conn exposes the underlying connection for collaborators that publish
// on their own subjects, such as the event notifier.
func (q *Queue) Conn() *nats.Conn {
	return q.conn
}

func (q *Queue) EnqueueEnrichment(ctx context.Context, task domain.EnrichmentTask) error {
	return q.publish(ctx, q.enrichSubject, task)
}

func (q *Queue) EnqueueThumbnail(ctx context.Context, task domain.ThumbnailTask) error {
	return q.publish(ctx, q.thumbnailSubject, task)
}

func (q *Queue) publish(ctx context.Context, subject string, task any) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeEnrichment blocks until ctx is cancelled, dispatching tasks to
// the handler within the worker queue group.
func (q *Queue) SubscribeEnrichment(ctx context.Context, handler func(context.Context, domain.EnrichmentTask) error) error {
	return q.subscribe(ctx, q.enrichSubject, func(msgCtx context.Context, data []byte) error {
		var task domain.EnrichmentTask
		if err := json.Unmarshal(data, &task); err != nil {
			return fmt.Errorf("decode enrichment task: %w", err)
		}
		if err := handler(msgCtx, task); err != nil {
			q.scheduleRetry(ctx, q.enrichSubject, task.FileID, task.Attempt, err, func(attempt int) any {
				task.Attempt = attempt
				return task
			})
			return err
		}
		return nil
	})
}

// SubscribeThumbnail blocks until ctx is cancelled.
func (q *Queue) SubscribeThumbnail(ctx context.Context, handler func(context.Context, domain.ThumbnailTask) error) error {
	return q.subscribe(ctx, q.thumbnailSubject, func(msgCtx context.Context, data []byte) error {
		var task domain.ThumbnailTask
		if err := json.Unmarshal(data, &task); err != nil {
			return fmt.Errorf("decode thumbnail task: %w", err)
		}
		if err := handler(msgCtx, task); err != nil {
			q.scheduleRetry(ctx, q.thumbnailSubject, task.FileID, task.Attempt, err, func(attempt int) any {
				task.Attempt = attempt
				return task
			})
			return err
		}
		return nil
	})
}

func (q *Queue) subscribe(ctx context.Context, subject string, handle func(context.Context, []byte) error) error {
	sub, err := q.conn.QueueSubscribe(subject, workerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handle(handlerCtx, msg.Data); err != nil {
			q.logger.Error("task handler failed", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// scheduleRetry re-publishes a failed task after a backoff, unless the
// failure is permanent or the retry budget is spent.
func (q *Queue) scheduleRetry(ctx context.Context, subject, fileID string, attempt int, cause error, build func(int) any) {
	if isPermanent(cause) {
		q.logger.Warn("dropping task after permanent failure",
			"subject", subject, "file_id", fileID, "error", cause)
		return
	}
	next := attempt + 1
	if next > q.maxRetries {
		q.logger.Error("retry budget exhausted, dropping task",
			"subject", subject, "file_id", fileID, "attempts", attempt, "error", cause)
		return
	}

	payload, err := json.Marshal(build(next))
	if err != nil {
		q.logger.Error("marshal retry task", "subject", subject, "file_id", fileID, "error", err)
		return
	}

	if q.onRetry != nil {
		q.onRetry(subject)
	}

	delay := q.retryBackoff * time.Duration(next)
	time.AfterFunc(delay, func() {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		if err := q.conn.Publish(subject, payload); err != nil {
			q.logger.Error("re-publish retry task", "subject", subject, "file_id", fileID, "error", err)
			return
		}
		q.logger.Info("task re-queued", "subject", subject, "file_id", fileID, "attempt", next, "delay", delay)
	})
}

func isPermanent(err error) bool {
	return domain.IsKind(err, domain.ErrFileNotFound) ||
		domain.IsKind(err, domain.ErrInvalidInput) ||
		domain.IsKind(err, domain.ErrUnsupported)
}
