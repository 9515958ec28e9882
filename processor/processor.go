// Package processor schedules chunk reads over a cube. The cube tree
// itself is single threaded and re-entrant; all parallelism lives here,
// calling ReadChunk for distinct chunk ids from multiple goroutines.
package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/maesbri-forks-geo/gdalcubes/cube"
)

// ChunkFunc consumes one materialized chunk. It may be called from
// multiple goroutines concurrently, once per chunk id.
type ChunkFunc func(id cube.ChunkID, data *cube.ChunkData) error

// ChunkProcessor applies a function to every chunk of a cube.
type ChunkProcessor interface {
	Apply(ctx context.Context, c cube.Cube, f ChunkFunc) error
}

// SinglethreadProcessor reads chunks one after another in id order.
type SinglethreadProcessor struct{}

func NewSinglethreadProcessor() *SinglethreadProcessor {
	return &SinglethreadProcessor{}
}

func (p *SinglethreadProcessor) Apply(ctx context.Context, c cube.Cube, f ChunkFunc) error {
	for id := 0; id < c.CountChunks(); id++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("chunk processor has been cancelled: %v", ctx.Err())
		default:
		}
		data, err := c.ReadChunk(cube.ChunkID(id))
		if err != nil {
			return err
		}
		if err := f(cube.ChunkID(id), data); err != nil {
			return err
		}
	}
	return nil
}

// MultithreadProcessor fans chunk ids over a bounded number of
// goroutines. The first error stops the dispatch of further chunks and
// is returned once in-flight chunks have drained; any retry policy is
// the caller's.
type MultithreadProcessor struct {
	Threads int
}

func NewMultithreadProcessor(threads int) *MultithreadProcessor {
	if threads < 1 {
		threads = 1
	}
	return &MultithreadProcessor{Threads: threads}
}

func (p *MultithreadProcessor) Apply(ctx context.Context, c cube.Cube, f ChunkFunc) error {
	limiter := NewConcLimiter(p.Threads)

	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for id := 0; id < c.CountChunks(); id++ {
		select {
		case <-ctx.Done():
			setErr(fmt.Errorf("chunk processor has been cancelled: %v", ctx.Err()))
		default:
		}
		mu.Lock()
		stop := firstErr != nil
		mu.Unlock()
		if stop {
			break
		}

		limiter.Increase()
		go func(id cube.ChunkID) {
			defer limiter.Decrease()
			data, err := c.ReadChunk(id)
			if err == nil {
				err = f(id, data)
			}
			if err != nil {
				setErr(err)
			}
		}(cube.ChunkID(id))
	}
	limiter.Wait()
	return firstErr
}
