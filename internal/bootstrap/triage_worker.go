package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"triage_server/adapter/in/worker"
	"triage_server/config"
	"triage_server/internal/stream"
)

// Worker is the stream-consuming process: it pulls jobs off the redis
// streams and runs them through the pipeline on the pool.
type Worker struct {
	pool     *worker.Pool
	consumer *stream.Consumer
	deps     *Dependencies
	cleanup  func()
	ctx      context.Context
	cancel   context.CancelFunc
	log      zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	log := NewLogger("triage-worker", cfg.IsDevelopment())

	deps, cleanup, err := NewDependencies(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize dependencies")
		return nil, nil, err
	}

	ingest := worker.NewIngestProcessor(deps.Pipeline, log)
	approval := worker.NewApprovalProcessor(deps.Pipeline, log)
	knowledge := worker.NewKnowledgeProcessor(deps.Grounding, log)
	handler := worker.NewHandler(ingest, approval, knowledge, log)

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerMax > 0 {
		poolConfig.MaxWorkers = cfg.WorkerMax
	}
	if cfg.WorkerQueueSize > 0 {
		poolConfig.QueueSize = cfg.WorkerQueueSize
	}
	pool := worker.NewPool(handler, poolConfig, log)

	consumer := stream.NewConsumer(deps.Stream, pool, cfg.ConsumerID, log)

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		pool:     pool,
		consumer: consumer,
		deps:     deps,
		cleanup:  cleanup,
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}

	return w, cleanup, nil
}

// Start launches the pool and the stream consumers.
func (w *Worker) Start() {
	w.pool.Start()
	w.consumer.Start(w.ctx)
	w.log.Info().Str("consumer_id", w.deps.Config.ConsumerID).Msg("worker started")
}

// Stop drains the pool and stops the consumers.
func (w *Worker) Stop() {
	w.cancel()
	w.pool.Stop()
	w.log.Info().Msg("worker stopped")
}
