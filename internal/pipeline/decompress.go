package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/qgraph/compress"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
	"github.com/arloliu/qgraph/section"
)

type decompressWorker struct {
	id    int
	frame []byte    // compressed frame read from the shared input
	slots [2][]byte // alternating decompressed blocks
	sizes [2]int
	free  chan struct{} // one token per slot the caller has released
}

// Decompressor is the read-side pipeline.
//
// Blocks are returned in source order. A block returned by NextBlock stays
// valid until the following NextBlock call.
type Decompressor struct {
	r         io.Reader
	codec     compress.Decompressor
	algorithm format.Algorithm
	blockSize int
	frames    uint64
	workers   []*decompressWorker
	turns     []chan struct{}
	counter   *OrderedCounter
	notify    chan struct{}
	group     *errgroup.Group
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger

	next      uint64 // next block to return
	held      bool   // the caller still holds block next-1
	closeOnce sync.Once
	err       error
}

// NewDecompressor starts threads workers reading frames blocks from r.
//
// Parameters:
//   - r: positioned at the first frame; read by one worker at a time
//   - codec: block decompressor, shared by all workers
//   - alg: reported in decompression errors
//   - blockSize: capacity of every output buffer
//   - frames: number of frames to read
//   - threads: number of workers, at least 1
//   - logger: receives worker lifecycle debug logs
func NewDecompressor(r io.Reader, codec compress.Decompressor, alg format.Algorithm, blockSize int, frames uint64, threads int, logger *zap.Logger) (*Decompressor, error) {
	if threads < 1 {
		return nil, fmt.Errorf("%w: %d", errs.ErrInvalidThreadCount, threads)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	p := &Decompressor{
		r:         r,
		codec:     codec,
		algorithm: alg,
		blockSize: blockSize,
		frames:    frames,
		workers:   make([]*decompressWorker, threads),
		turns:     make([]chan struct{}, threads),
		counter:   NewOrderedCounter(threads),
		notify:    make(chan struct{}, 1),
		group:     group,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	for i := range threads {
		wk := &decompressWorker{
			id:   i,
			free: make(chan struct{}, 2),
		}
		wk.slots[0] = make([]byte, blockSize)
		wk.slots[1] = make([]byte, blockSize)
		wk.free <- struct{}{}
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

// NextBlock returns the next decompressed block, or io.EOF after the last one.
// It releases the previously returned block to its worker.
func (p *Decompressor) NextBlock() ([]byte, error) {
	n := uint64(len(p.workers))
	if p.held {
		// the caller is done with block next-1
		p.workers[(p.next-1)%n].free <- struct{}{}
		p.held = false
	}
	if p.next >= p.frames {
		return nil, io.EOF
	}

	k := p.next
	for !p.counter.Done(k) {
		select {
		case <-p.notify:
		case <-p.ctx.Done():
			// a worker may have finished k right before failing elsewhere
			if p.counter.Done(k) {
				break
			}

			return nil, p.wait()
		}
	}

	wk := p.workers[k%n]
	slot := (k / n) % 2
	p.next++
	p.held = true

	return wk.slots[slot][:wk.sizes[slot]], nil
}

// Close stops the workers and returns the first worker error, if any.
// Closing before every block was consumed is not an error.
func (p *Decompressor) Close() error {
	p.cancel()
	err := p.wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func (p *Decompressor) wait() error {
	p.closeOnce.Do(func() {
		p.err = p.group.Wait()
		p.logger.Debug("decompression pipeline finished",
			zap.Int("workers", len(p.workers)),
			zap.Uint64("frames", p.counter.Completed()),
		)
	})

	return p.err
}

func (p *Decompressor) run(wk *decompressWorker) error {
	n := uint64(len(p.workers))
	bound := compress.MaxCompressedSize(p.algorithm, p.blockSize)

	p.logger.Debug("decompression worker started", zap.Int("worker", wk.id))
	defer p.logger.Debug("decompression worker stopped", zap.Int("worker", wk.id))

	for k := uint64(wk.id); k < p.frames; k += n { //nolint:gosec
		slot := (k / n) % 2

		select {
		case <-wk.free:
		case <-p.ctx.Done():
			return p.ctx.Err()
		}

		select {
		case <-p.turns[wk.id]:
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
		frame, err := section.ReadFrame(p.r, wk.frame, bound)
		if err != nil {
			return fmt.Errorf("block %d: %w", k, err)
		}
		wk.frame = frame
		p.turns[(uint64(wk.id)+1)%n] <- struct{}{} //nolint:gosec

		size, err := p.codec.Decompress(wk.slots[slot], frame)
		if err != nil {
			return &errs.DecompressionError{Algorithm: p.algorithm.String(), Err: fmt.Errorf("block %d: %w", k, err)}
		}
		wk.sizes[slot] = size

		p.counter.Increment(wk.id)
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}

	return nil
}
