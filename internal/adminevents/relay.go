package adminevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/cenkalti/backoff.v1"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/metrics"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox/registry"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 5 * time.Second
	maxBackoff            = 10 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	Backlog(ctx context.Context, maxAttempts int) (int64, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	MarkTerminal(tx *gorm.DB, id uuid.UUID, cause error, attempts int) error
}

type dlqRepository interface {
	Park(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Publisher sends an encoded event on a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type RelayParams struct {
	Outbox     config.OutboxConfig
	Channel    string
	Logger     *logger.Logger
	DB         dbClient
	Repository outboxRepository
	DLQ        dlqRepository
	Registry   registryResolver
	Publisher  Publisher
	Metrics    *metrics.RelayMetrics
}

// Relay drains unpublished outbox rows onto the admin events channel. A row
// that fails is retried on later batches until MaxAttempts, then copied to
// the DLQ and marked terminal.
type Relay struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	dlq          dlqRepository
	registry     registryResolver
	publisher    Publisher
	metrics      *metrics.RelayMetrics
	channel      string
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.DLQ == nil {
		return nil, errors.New("dlq repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if params.Channel == "" {
		return nil, errors.New("admin events channel is required")
	}

	batch := params.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Relay{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		dlq:          params.DLQ,
		registry:     params.Registry,
		publisher:    params.Publisher,
		metrics:      params.Metrics,
		channel:      params.Channel,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
	}, nil
}

// Run polls until ctx is done. Batch errors back off exponentially up to
// maxBackoff; an idle poll waits one interval.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.pollInterval
	policy.MaxInterval = maxBackoff
	policy.MaxElapsedTime = 0

	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "outbox relay context canceled")
			return ctx.Err()
		default:
		}

		processed, err := r.ProcessBatch(ctx)
		if err != nil {
			r.logg.Error(ctx, "outbox relay batch error", err)
			if err := sleep(ctx, policy.NextBackOff()); err != nil {
				return err
			}
			continue
		}
		policy.Reset()

		if processed {
			continue
		}
		if err := sleep(ctx, r.pollInterval); err != nil {
			return err
		}
	}
}

// ProcessBatch handles one batch in a single transaction and reports whether
// any row was fetched.
func (r *Relay) ProcessBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	defer func() { r.metrics.ObserveBatch(time.Since(started)) }()

	processed := false
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.ClaimBatch(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		for _, event := range events {
			fields := eventFields(event)
			resolved, err := r.registry.Resolve(event)
			if err != nil {
				if markErr := r.terminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields); markErr != nil {
					return markErr
				}
				continue
			}

			if err := r.publish(ctx, event, resolved); err != nil {
				next := event.AttemptCount + 1
				fields["attempt_count"] = next
				if next >= r.maxAttempts {
					terminalErr := fmt.Errorf("max publish attempts reached: %w", err)
					if markErr := r.terminal(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminalErr, fields); markErr != nil {
						return markErr
					}
					continue
				}
				logCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", err.Error())
				r.logg.Warn(logCtx, "outbox publish failed")
				if markErr := r.repo.RecordFailure(tx, event.ID, err); markErr != nil {
					return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
				}
				r.metrics.IncRow(metrics.OutcomeFailed)
				continue
			}

			if markErr := r.repo.MarkPublished(tx, event.ID); markErr != nil {
				return fmt.Errorf("mark published %s: %w", event.ID, markErr)
			}
			r.metrics.IncRow(metrics.OutcomePublished)
			r.logg.Info(r.logg.WithFields(ctx, fields), "outbox event published")
		}
		return nil
	})
	if err == nil {
		r.reportBacklog(ctx)
	}
	return processed, err
}

func (r *Relay) reportBacklog(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	n, err := r.repo.Backlog(ctx, r.maxAttempts)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox backlog count failed")
		return
	}
	r.metrics.SetBacklog(n)
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	occurred := resolved.Envelope.OccurredAt
	if occurred.IsZero() {
		occurred = event.CreatedAt
	}
	body, err := json.Marshal(types.AdminEvent{
		Type:      string(event.EventType),
		Payload:   resolved.Payload,
		Timestamp: occurred.UTC(),
	})
	if err != nil {
		return err
	}
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return r.publisher.Publish(publishCtx, r.channel, body)
}

func (r *Relay) terminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, fields map[string]any) error {
	fields["error_reason"] = reason
	logCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", err.Error())
	r.logg.Warn(logCtx, "outbox event will not be retried")

	if dlqErr := r.dlq.Park(tx, event, reason, err); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := r.repo.MarkTerminal(tx, event.ID, err, r.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	r.metrics.IncRow(metrics.OutcomeTerminal)
	return nil
}

func eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
