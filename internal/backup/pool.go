package backup

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"paperstack/logger"
	"sync"
)

var (
	ErrQueueFull  = errors.New("backup queue is full")
	ErrPoolClosed = errors.New("backup worker pool is not running")
)

type (
	Handler func(ctx context.Context, jobID uuid.UUID) error

	// PanicHandler is called with the job whose handler panicked. The worker
	// survives and moves on to the next job.
	PanicHandler func(jobID uuid.UUID, err error)

	// Pool runs submitted jobs on a fixed number of workers fed by a bounded
	// queue. Submit never blocks.
	Pool struct {
		workers int
		queue   chan uuid.UUID

		lock    sync.Mutex
		running bool
		cancel  context.CancelFunc
		wg      sync.WaitGroup
	}
)

func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		workers: workers,
		queue:   make(chan uuid.UUID, queueSize),
	}
}

func (p *Pool) Start(ctx context.Context, handler Handler, onPanic PanicHandler) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.running {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-p.queue:
					p.run(ctx, worker, id, handler, onPanic)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, worker int, id uuid.UUID, handler Handler, onPanic PanicHandler) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("backup worker panicked: %v", r)
			logger.Error("backup worker recovered from panic",
				zap.Int("worker", worker),
				zap.String("job", id.String()),
				zap.Error(err))
			if onPanic != nil {
				onPanic(id, err)
			}
		}
	}()

	if err := handler(ctx, id); err != nil {
		logger.Warn("backup job returned error",
			zap.Int("worker", worker),
			zap.String("job", id.String()),
			zap.Error(err))
	}
}

func (p *Pool) Submit(id uuid.UUID) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.running {
		return ErrPoolClosed
	}

	select {
	case p.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels running jobs and waits for the workers to return. Jobs still
// queued stay pending in the job table.
func (p *Pool) Stop() {
	p.lock.Lock()
	if !p.running {
		p.lock.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.lock.Unlock()

	p.wg.Wait()
}
