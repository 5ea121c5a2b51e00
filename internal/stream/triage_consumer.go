package stream

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"triage_server/adapter/in/worker"
)

// Consumer bridges redis stream entries to the worker pool. Ingest jobs go to
// the main pool; approval resolutions are user-facing and run on the priority
// pool.
type Consumer struct {
	stream *RedisStream
	pool   *worker.Pool
	name   string
	log    zerolog.Logger
}

func NewConsumer(stream *RedisStream, pool *worker.Pool, name string, log zerolog.Logger) *Consumer {
	return &Consumer{
		stream: stream,
		pool:   pool,
		name:   name,
		log:    log.With().Str("component", "stream_consumer").Logger(),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	streams := []string{StreamIngest, StreamApproval, StreamKnowledge}
	for _, s := range streams {
		if err := c.stream.CreateGroup(ctx, s); err != nil {
			c.log.Error().Err(err).Str("stream", s).Msg("failed to create consumer group")
		}
	}

	go c.consume(ctx, StreamIngest, false)
	go c.consume(ctx, StreamApproval, true)
	go c.consume(ctx, StreamKnowledge, false)
}

func (c *Consumer) consume(ctx context.Context, stream string, priority bool) {
	c.stream.Consume(ctx, stream, c.name, func(id string, data []byte) error {
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			c.log.Error().Err(err).Str("entry_id", id).Msg("failed to unmarshal job")
			return err
		}

		msg := &worker.Message{
			ID:        job.ID,
			Type:      job.Type,
			Payload:   job.Payload,
			CreatedAt: job.CreatedAt,
		}
		if priority {
			msg.Priority = worker.PriorityHigh
			c.pool.SubmitPriority(msg)
			return nil
		}

		c.pool.Submit(msg)
		return nil
	})
}
