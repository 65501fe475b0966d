package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/tokenwatch/internal/models"
)

// ExecuteFunc sends an optimized request to a model.
type ExecuteFunc func(ctx context.Context, contextText, prompt string) (models.Response, error)

// BatchItem is one request in a batch.
type BatchItem struct {
	Context string
	Prompt  string
	Execute ExecuteFunc
}

// BatchOptions controls chunking. A zero Size uses the configured batch size.
type BatchOptions struct {
	Size  int
	Delay time.Duration
}

// BatchOptions returns the configured chunk size and delay.
func (e *Engine) BatchOptions() BatchOptions {
	return BatchOptions{Size: e.config.BatchSize, Delay: e.config.BatchDelay}
}

var errNoExecutor = errors.New("batch item has no executor")

// BatchRequests splits items into consecutive chunks. Each chunk is
// optimized and executed concurrently and must finish before the next
// starts; opts.Delay separates chunks. Results keep the input order.
// The first failure in a chunk cancels its siblings and is returned.
func (e *Engine) BatchRequests(ctx context.Context, items []BatchItem, opts BatchOptions) ([]models.Response, error) {
	size := opts.Size
	if size <= 0 {
		size = e.config.BatchSize
	}

	results := make([]models.Response, len(items))
	for start := 0; start < len(items); start += size {
		if start > 0 && opts.Delay > 0 {
			if err := sleepCtx(ctx, opts.Delay); err != nil {
				return nil, err
			}
		}

		end := min(start+size, len(items))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				resp, err := e.execute(gctx, items[i])
				if err != nil {
					return fmt.Errorf("batch item %d: %w", i, err)
				}
				results[i] = resp
				return nil
			})
		}

		e.mu.Lock()
		e.counters.batchOperations++
		e.mu.Unlock()

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (e *Engine) execute(ctx context.Context, item BatchItem) (models.Response, error) {
	opt := e.OptimizeRequest(item.Context, item.Prompt, Options{})
	if opt.CacheHit {
		return *opt.Cached, nil
	}
	if item.Execute == nil {
		return models.Response{}, errNoExecutor
	}
	return item.Execute(ctx, opt.OptimizedContext, opt.OptimizedPrompt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
