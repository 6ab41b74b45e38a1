package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/firefly/security-center/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher routes party change events to a fixed set of workers using
// consistent hashing on the party id, so events for one party are applied in
// the order they were accepted.
type Dispatcher struct {
	workers   []chan ports.PartyChangeEvent
	processor ports.PartyChangeProcessor
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, processor ports.PartyChangeProcessor, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan ports.PartyChangeEvent, numWorkers),
		processor: processor,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.PartyChangeEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands an event to the worker responsible for its party. It blocks
// while that worker's buffer is full, until ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, event ports.PartyChangeEvent) error {
	select {
	case d.workers[d.shardIndex(event.PartyID.String())] <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueBatch enqueues multiple events preserving per-party ordering.
func (d *Dispatcher) EnqueueBatch(ctx context.Context, events []ports.PartyChangeEvent) error {
	for _, e := range events {
		if err := d.Enqueue(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// shardIndex maps a party id deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.PartyChangeEvent) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := d.processor.Process(ctx, event); err != nil {
				d.log.Error().Err(err).
					Str("party_id", event.PartyID.String()).
					Str("kind", string(event.Kind)).
					Int("worker_id", id).
					Msg("party change processing failed")
			}
		}
	}
}
