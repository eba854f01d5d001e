package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/qgraph/compress"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/section"
)

type compressWorker struct {
	id      int
	input   []byte        // block being filled by the caller or compressed by the worker
	scratch []byte        // frame header + compressed block
	free    chan struct{} // holds a token while input may be filled
	jobs    chan int      // filled length of input
}

// Compressor is the write-side pipeline.
//
// Usage:
//
//	p := pipeline.NewCompressor(w, codec, blockSize, threads, logger)
//	for more {
//		buf, err := p.NextBlock()
//		// fill buf[:n]
//		err = p.Push(n)
//	}
//	err := p.Finish()
type Compressor struct {
	w       io.Writer
	codec   compress.Compressor
	workers []*compressWorker
	turns   []chan struct{}
	group   *errgroup.Group
	ctx     context.Context
	logger  *zap.Logger

	next     uint64 // blocks handed to workers
	pending  bool   // NextBlock called without the matching Push
	finished bool
	stopOnce sync.Once
	err      error

	written        atomic.Uint64
	compressedSize atomic.Int64
}

// NewCompressor starts threads workers writing frames to w.
//
// Parameters:
//   - w: frame destination; written by one worker at a time
//   - codec: block compressor, shared by all workers
//   - blockSize: capacity of every input buffer
//   - threads: number of workers, at least 1
//   - logger: receives worker lifecycle debug logs
func NewCompressor(w io.Writer, codec compress.Compressor, blockSize, threads int, logger *zap.Logger) (*Compressor, error) {
	if threads < 1 {
		return nil, fmt.Errorf("%w: %d", errs.ErrInvalidThreadCount, threads)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	group, ctx := errgroup.WithContext(context.Background())
	p := &Compressor{
		w:       w,
		codec:   codec,
		workers: make([]*compressWorker, threads),
		turns:   make([]chan struct{}, threads),
		group:   group,
		ctx:     ctx,
		logger:  logger,
	}

	bound := section.FrameHeaderSize + codec.CompressBound(blockSize)
	for i := range threads {
		wk := &compressWorker{
			id:      i,
			input:   make([]byte, blockSize),
			scratch: make([]byte, 0, bound),
			free:    make(chan struct{}, 1),
			jobs:    make(chan int, 1),
		}
		wk.free <- struct{}{}
		p.workers[i] = wk
		p.turns[i] = make(chan struct{}, 1)
	}
	p.turns[0] <- struct{}{}

	for _, wk := range p.workers {
		group.Go(func() error { return p.run(wk) })
	}

	return p, nil
}

// NextBlock returns the buffer for the next block, waiting until its worker
// has released it. The buffer has length blockSize.
func (p *Compressor) NextBlock() ([]byte, error) {
	if p.finished {
		return nil, errs.ErrClosed
	}
	if p.pending {
		return nil, fmt.Errorf("pipeline: NextBlock called twice without Push")
	}

	wk := p.workers[p.next%uint64(len(p.workers))]
	select {
	case <-wk.free:
	case <-p.ctx.Done():
		return nil, p.stop()
	}
	p.pending = true

	return wk.input, nil
}

// Push submits the first n bytes of the buffer returned by the last NextBlock.
func (p *Compressor) Push(n int) error {
	if !p.pending {
		return fmt.Errorf("pipeline: Push without NextBlock")
	}

	wk := p.workers[p.next%uint64(len(p.workers))]
	p.pending = false
	p.next++

	// the worker drained jobs before releasing free, so this never blocks
	select {
	case wk.jobs <- n:
		return nil
	case <-p.ctx.Done():
		return p.stop()
	}
}

// Finish waits until every pushed block is written and stops the workers.
func (p *Compressor) Finish() error {
	if p.pending {
		// a claimed but unsubmitted buffer holds no data
		p.pending = false
		p.workers[p.next%uint64(len(p.workers))].free <- struct{}{}
	}
	err := p.stop()
	p.finished = true

	p.logger.Debug("compression pipeline finished",
		zap.Int("workers", len(p.workers)),
		zap.Uint64("frames", p.written.Load()),
		zap.Int64("compressed_bytes", p.compressedSize.Load()),
	)

	return err
}

// Written returns the number of frames written so far.
func (p *Compressor) Written() uint64 {
	return p.written.Load()
}

// CompressedSize returns the compressed bytes written so far, frame headers excluded.
func (p *Compressor) CompressedSize() int64 {
	return p.compressedSize.Load()
}

// stop closes the job queues and waits for the workers. Safe to call repeatedly.
func (p *Compressor) stop() error {
	p.stopOnce.Do(func() {
		for _, wk := range p.workers {
			close(wk.jobs)
		}
		p.err = p.group.Wait()
	})

	return p.err
}

func (p *Compressor) run(wk *compressWorker) error {
	n := len(p.workers)
	p.logger.Debug("compression worker started", zap.Int("worker", wk.id))
	defer p.logger.Debug("compression worker stopped", zap.Int("worker", wk.id))

	for {
		var size int
		select {
		case s, ok := <-wk.jobs:
			if !ok {
				return nil
			}
			size = s
		case <-p.ctx.Done():
			return p.ctx.Err()
		}

		frame, err := p.codec.Compress(wk.scratch[:section.FrameHeaderSize], wk.input[:size])
		if err != nil {
			return fmt.Errorf("compress block: %w", err)
		}
		payload := len(frame) - section.FrameHeaderSize
		section.PutFrameHeader(frame, payload)
		wk.scratch = frame[:0]

		// input is consumed; let the caller fill it while this frame waits its turn
		wk.free <- struct{}{}

		select {
		case <-p.turns[wk.id]:
		case <-p.ctx.Done():
			return p.ctx.Err()
		}

		if _, err := p.w.Write(frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		p.written.Add(1)
		p.compressedSize.Add(int64(payload))

		p.turns[(wk.id+1)%n] <- struct{}{}
	}
}
