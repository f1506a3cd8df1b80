// Package worker isolates generation behind a message boundary: callers send
// Start and Abort commands and read events from a single ordered channel.
// A worker runs at most one generation at a time.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"textgend/internal/generation"
)

// Command is Start or Abort.
type Command interface{ isCommand() }

// Start begins a generation.
type Start struct {
	Request generation.Request
	// RunID optionally names the run; a random id is used when empty.
	RunID string
}

// Abort cancels the active generation. It is a no-op when none is running.
type Abort struct{}

func (Start) isCommand() {}
func (Abort) isCommand() {}

// ErrBusy is reported when Start arrives while a run is active.
var ErrBusy = generation.ErrBusy

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("worker closed")

// Runner is the generation engine a Worker drives.
type Runner interface {
	RunWithID(ctx context.Context, id string, req generation.Request, emit func(generation.Event), isCancelled func() bool) error
}

// Options configures a Worker.
type Options struct {
	Logger zerolog.Logger
	// Buffer sizes the event channel; 64 when zero.
	Buffer int
}

// Worker hosts generations on their own goroutines.
type Worker struct {
	runner Runner
	log    zerolog.Logger
	cmds   chan envelope
	events chan generation.Event

	ctx    context.Context
	cancel context.CancelFunc
	host   sync.WaitGroup
	runs   sync.WaitGroup

	closeOnce sync.Once
	closed    atomic.Bool
}

// New starts a worker. Call Close to stop it.
func New(r Runner, opts Options) *Worker {
	buf := opts.Buffer
	if buf <= 0 {
		buf = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		runner: r,
		log:    opts.Logger,
		cmds:   make(chan envelope),
		events: make(chan generation.Event, buf),
		ctx:    ctx,
		cancel: cancel,
	}
	w.host.Add(1)
	go w.loop()
	return w
}

// Events returns the outbound event stream. It is closed after Close once
// the active run, if any, has emitted its terminal event.
func (w *Worker) Events() <-chan generation.Event { return w.events }

// envelope carries a command to the loop; done closes once it is applied.
type envelope struct {
	cmd  Command
	done chan struct{}
}

// Send delivers a command to the worker and returns once the worker has
// applied it: after Send(Abort) returns, the active run emits no further
// progress. Results arrive as events.
func (w *Worker) Send(cmd Command) error {
	if w.closed.Load() {
		return ErrClosed
	}
	env := envelope{cmd: cmd, done: make(chan struct{})}
	select {
	case w.cmds <- env:
	case <-w.ctx.Done():
		return ErrClosed
	}
	<-env.done
	return nil
}

// active is the run currently owning the worker.
type active struct {
	id        string
	cancelled atomic.Bool
}

func (w *Worker) loop() {
	defer w.host.Done()
	var cur atomic.Pointer[active]
	for {
		select {
		case <-w.ctx.Done():
			if a := cur.Load(); a != nil {
				a.cancelled.Store(true)
			}
			return
		case env := <-w.cmds:
			w.apply(&cur, env.cmd)
			close(env.done)
		}
	}
}

func (w *Worker) apply(cur *atomic.Pointer[active], cmd Command) {
	switch c := cmd.(type) {
	case Start:
		if a := cur.Load(); a != nil {
			w.log.Debug().Str("active_run", a.id).Msg("start rejected: busy")
			w.emit(generation.Errored{RunID: c.RunID, Err: ErrBusy})
			return
		}
		a := &active{id: c.RunID}
		cur.Store(a)
		w.runs.Add(1)
		go func() {
			defer w.runs.Done()
			defer cur.CompareAndSwap(a, nil)
			_ = w.runner.RunWithID(w.ctx, a.id, c.Request, func(ev generation.Event) {
				// the next Start may arrive as soon as a terminal event is seen
				if generation.Terminal(ev) {
					cur.CompareAndSwap(a, nil)
				}
				w.emit(ev)
			}, a.cancelled.Load)
		}()
	case Abort:
		if a := cur.Load(); a != nil {
			a.cancelled.Store(true)
		}
	}
}

// emit delivers ev in order. Once the worker is closing, an event that does
// not fit the buffer is dropped instead of blocking shutdown.
func (w *Worker) emit(ev generation.Event) {
	select {
	case w.events <- ev:
		return
	default:
	}
	select {
	case w.events <- ev:
	case <-w.ctx.Done():
		w.log.Debug().Str("run_id", generation.RunIDOf(ev)).Msg("event dropped on close")
	}
}

// Close aborts the active run, waits for it to finish and closes Events.
// Events already buffered remain readable.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		w.cancel()
		w.host.Wait()
		w.runs.Wait()
		close(w.events)
	})
	return nil
}
