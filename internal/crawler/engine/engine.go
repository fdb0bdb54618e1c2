package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JameZUK/fqdn-builder/internal"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// Processor handles a single target and returns the items to persist.
type Processor[T any] interface {
	Process(ctx context.Context, target models.Target) ([]T, error)
}

// Sink defines how to persist the data.
type Sink[T any] interface {
	Save(batch []T) error
}

// Config holds worker settings.
type Config struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
}

// Engine runs a bounded pool of workers over a fixed target list.
type Engine[T any] struct {
	config    Config
	processor Processor[T]
	sink      Sink[T]
	logger    zerolog.Logger

	visited   *internal.SafeSet
	results   chan T
	waitGroup sync.WaitGroup
}

func NewEngine[T any](cfg Config, proc Processor[T], sink Sink[T], logger zerolog.Logger) *Engine[T] {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Engine[T]{
		config:    cfg,
		processor: proc,
		sink:      sink,
		logger:    logger.With().Str("component", "engine").Logger(),
		visited:   internal.NewSafeSet(),
		results:   make(chan T, cfg.BatchSize*2),
	}
}

// Run processes every target once and returns after the sink received all
// results. Duplicate targets (same normalized URL) are processed once. The
// error is ctx.Err() when the run was interrupted.
func (engine *Engine[T]) Run(ctx context.Context, targets []models.Target) error {
	jobs := make(chan models.Target)

	storageDone := make(chan struct{})
	go func() {
		defer close(storageDone)
		engine.startStorageWorker()
	}()

	for i := 0; i < engine.config.Workers; i++ {
		engine.waitGroup.Add(1)
		go engine.startCrawlWorker(ctx, i, jobs)
	}

	engine.logger.Info().Int("workers", engine.config.Workers).Int("targets", len(targets)).Msg("engine started")

feed:
	for _, t := range targets {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- t:
		}
	}
	close(jobs)

	engine.waitGroup.Wait()
	close(engine.results)
	<-storageDone

	return ctx.Err()
}

func (engine *Engine[T]) startCrawlWorker(ctx context.Context, id int, jobs <-chan models.Target) {
	defer engine.waitGroup.Done()

	for target := range jobs {
		if ctx.Err() != nil {
			continue
		}
		if engine.visited.Contains(target.URL) {
			engine.logger.Debug().Str("target", target.URL).Msg("duplicate target skipped")
			continue
		}

		engine.logger.Debug().Int("worker", id).Str("target", target.URL).Msg("processing")

		data, err := engine.processor.Process(ctx, target)
		if err != nil {
			engine.logger.Warn().Int("worker", id).Str("target", target.URL).Err(err).Msg("processing failed")
			continue
		}

		for _, item := range data {
			engine.results <- item
		}
	}
}

// startStorageWorker drains results until the channel closes, flushing on
// batch size or on the ticker.
func (engine *Engine[T]) startStorageWorker() {
	buffer := make([]T, 0, engine.config.BatchSize)
	ticker := time.NewTicker(engine.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		if err := engine.sink.Save(buffer); err != nil {
			engine.logger.Error().Err(err).Int("items", len(buffer)).Msg("failed to save batch")
		} else {
			engine.logger.Debug().Int("items", len(buffer)).Msg("saved batch")
		}
		buffer = make([]T, 0, engine.config.BatchSize)
	}

	for {
		select {
		case item, ok := <-engine.results:
			if !ok {
				flush()
				return
			}
			buffer = append(buffer, item)
			if len(buffer) >= engine.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
