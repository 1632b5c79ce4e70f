package infra

import (
	"context"
	"log/slog"
	"time"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/repository"
)

// EventSink receives published outbox events for in-process fan-out
// (websocket streams, read-model projections).
type EventSink interface {
	HandleEvent(ctx context.Context, row domain.OutboxRow)
}

// OutboxPoller drains the event_outbox table, publishing each event to Kafka
// and to any registered sinks.
type OutboxPoller struct {
	runner    repository.TxRunner
	outbox    repository.OutboxRepository
	producer  *KafkaProducer
	sinks     []EventSink
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a new outbox poller.
func NewOutboxPoller(runner repository.TxRunner, outbox repository.OutboxRepository, producer *KafkaProducer, logger *slog.Logger, sinks ...EventSink) *OutboxPoller {
	return &OutboxPoller{
		runner:    runner,
		outbox:    outbox,
		producer:  producer,
		sinks:     sinks,
		logger:    logger,
		interval:  500 * time.Millisecond,
		batchSize: 100,
	}
}

// Start begins polling in a goroutine. Stops when ctx is cancelled.
func (p *OutboxPoller) Start(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("outbox poller stopped")
				return
			case <-ticker.C:
				if err := p.poll(ctx); err != nil {
					p.logger.Error("outbox poll error", "error", err)
				}
			}
		}
	}()
}

func (p *OutboxPoller) poll(ctx context.Context) error {
	var rows []domain.OutboxRow
	err := p.runner.WithinTx(ctx, func(db repository.DBTX) error {
		var err error
		rows, err = p.outbox.FetchUnpublishedRows(ctx, db, p.batchSize)
		return err
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	published := make([]int64, 0, len(rows))
	for _, row := range rows {
		if err := p.producer.PublishEvent(ctx, row); err != nil {
			p.logger.Error("kafka publish failed", "event_id", row.EventID, "error", err)
			continue
		}
		for _, sink := range p.sinks {
			sink.HandleEvent(ctx, row)
		}
		published = append(published, row.SeqID)
	}

	if len(published) == 0 {
		return nil
	}
	err = p.runner.WithinTx(ctx, func(db repository.DBTX) error {
		return p.outbox.MarkPublished(ctx, db, published)
	})
	if err != nil {
		return err
	}

	p.logger.Debug("outbox poll complete", "published", len(published))
	return nil
}
