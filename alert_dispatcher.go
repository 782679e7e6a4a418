package tokenward

import (
	"context"
	"sync"
	"sync/atomic"
)

// alertDispatcher decouples alert raising from sink delivery: breach
// detection runs on request paths and must never block on a slow sink.
// It satisfies breach.AlertSink itself, so it slots straight into the
// detector config.
type alertDispatcher struct {
	cfg       AlertConfig
	sink      AlertSink
	ch        chan SecurityAlert
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAlertDispatcher(cfg AlertConfig, sink AlertSink) *alertDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &alertDispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan SecurityAlert, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *alertDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case alert := <-d.ch:
			d.sink.Emit(context.Background(), alert)
		case <-d.done:
			// Drain what was buffered before Close.
			for {
				select {
				case alert := <-d.ch:
					d.sink.Emit(context.Background(), alert)
				default:
					return
				}
			}
		}
	}
}

// Emit enqueues an alert for delivery. With DropIfFull set a full buffer
// sheds the alert and counts the drop; otherwise Emit blocks until the
// buffer accepts it, ctx is done, or the dispatcher closes.
func (d *alertDispatcher) Emit(ctx context.Context, alert SecurityAlert) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- alert:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- alert:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops intake, drains the buffer to the sink, and waits for the
// delivery goroutine to exit.
func (d *alertDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many alerts were shed under DropIfFull.
func (d *alertDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
