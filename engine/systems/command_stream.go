package systems

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

// WorkItem is one unit of device work. It runs on the stream worker.
type WorkItem func() (any, error)

var ErrStreamClosed = fmt.Errorf("command stream is shut down: %w", core.ErrInvalidParameter)
var ErrNegativeQueueSize = fmt.Errorf("attempting to create command stream with a negative queue size")

// Ticket is the pending result of an enqueued item.
type Ticket struct {
	done   chan struct{}
	result any
	err    error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

func (t *Ticket) resolve(result any, err error) {
	t.result, t.err = result, err
	close(t.done)
}

// Wait blocks until the item has run and returns what it returned.
func (t *Ticket) Wait() (any, error) {
	<-t.done
	return t.result, t.err
}

// Done is closed once the item has run.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

type streamEntry struct {
	work   WorkItem
	ticket *Ticket
}

// CommandStream runs work items one at a time, in the order they were
// enqueued, on a single goroutine. All device calls go through it.
type CommandStream struct {
	queue chan streamEntry
	wg    sync.WaitGroup

	// guards closed and sends on queue
	mu     sync.RWMutex
	closed bool

	busy    atomic.Bool
	running atomic.Bool
}

func NewCommandStream(queueSize int) (*CommandStream, error) {
	if queueSize < 0 {
		return nil, ErrNegativeQueueSize
	}
	cs := &CommandStream{
		queue: make(chan streamEntry, queueSize),
	}
	cs.start()
	return cs, nil
}

func (cs *CommandStream) start() {
	cs.running.Store(true)
	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		defer cs.running.Store(false)
		for entry := range cs.queue {
			cs.busy.Store(true)
			result, err := cs.run(entry.work)
			cs.busy.Store(false)
			entry.ticket.resolve(result, err)
		}
	}()
}

// run executes work, turning a panic into an error so one bad item does
// not take the worker down.
func (cs *CommandStream) run(work WorkItem) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command stream item panicked: %v: %w", r, core.ErrUnknown)
			core.LogError(err.Error())
		}
	}()
	return work()
}

// Enqueue queues work and returns immediately unless the queue is full.
// After Shutdown the returned ticket already holds ErrStreamClosed.
func (cs *CommandStream) Enqueue(work WorkItem) *Ticket {
	t := newTicket()
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.closed {
		t.resolve(nil, ErrStreamClosed)
		return t
	}
	cs.queue <- streamEntry{work: work, ticket: t}
	return t
}

// EnqueueAndWait queues work and blocks until it has run. It must not be
// called from a work item.
func (cs *CommandStream) EnqueueAndWait(work WorkItem) (any, error) {
	return cs.Enqueue(work).Wait()
}

// IsBusy reports whether an item is executing right now.
func (cs *CommandStream) IsBusy() bool {
	return cs.busy.Load()
}

func (cs *CommandStream) IsRunning() bool {
	return cs.running.Load()
}

// Pending returns the number of queued items not yet started.
func (cs *CommandStream) Pending() int {
	return len(cs.queue)
}

// Shutdown runs everything already queued, then stops the worker.
func (cs *CommandStream) Shutdown() {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return
	}
	cs.closed = true
	close(cs.queue)
	cs.mu.Unlock()
	cs.wg.Wait()
}
