package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/stakehouse/platform/internal/domain"
	"github.com/stakehouse/platform/internal/infra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
		os.Exit(1)
	}
}

// run tails the published event topics and writes a structured audit line per
// event. Downstream settlement analytics hang off the same consumer group.
func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.KafkaEnabled {
		return fmt.Errorf("KAFKA_ENABLED must be true for the outbox consumer")
	}

	topics := infra.EventTopics()
	if s := os.Getenv("EVENT_TOPICS"); s != "" {
		topics = strings.Split(s, ",")
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, strings.TrimSpace(topic), "outbox-audit", true, logger)
		wg.Add(1)
		go func(topic string, consumer *infra.KafkaConsumer) {
			defer wg.Done()
			defer consumer.Close()
			tail(ctx, topic, consumer, logger)
		}(topic, consumer)
	}

	logger.Info("outbox consumer started", "topics", topics)
	wg.Wait()
	return nil
}

func tail(ctx context.Context, topic string, consumer *infra.KafkaConsumer, logger *slog.Logger) {
	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("read failed", "topic", topic, "error", err)
			continue
		}

		var draft domain.OutboxDraft
		if err := json.Unmarshal(msg.Value, &draft); err != nil {
			logger.Warn("undecodable event", "topic", topic, "offset", msg.Offset)
			continue
		}
		logger.Info("event",
			"topic", topic,
			"event_id", draft.EventID,
			"event_type", draft.EventType,
			"aggregate_type", draft.AggregateType,
			"aggregate_id", draft.AggregateID,
		)
	}
}
