package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/signalduino/internal/commands"
	"github.com/dbehnke/signalduino/internal/sderr"
)

type outcome struct {
	res commands.Result
	err error
}

// Pending is a request waiting in, or being executed from, the command queue
type Pending struct {
	req     commands.Request
	ctx     context.Context
	reply   chan outcome
	claimed atomic.Bool
	once    sync.Once

	c *Controller
}

func (p *Pending) finish(res commands.Result, err error) {
	p.once.Do(func() {
		p.reply <- outcome{res: res, err: err}
	})
}

// Wait blocks until the request completes. A request that is not started
// within the queue timeout fails with CommandTimeout.
func (p *Pending) Wait() (commands.Result, error) {
	queued := time.NewTimer(p.c.cfg.QueueTimeout)
	defer queued.Stop()

	for {
		select {
		case o := <-p.reply:
			return o.res, o.err
		case <-p.ctx.Done():
			p.claimed.Store(true)
			return commands.Result{}, &sderr.CommandCancelled{Command: p.req.Command}
		case <-p.c.closed:
			p.claimed.Store(true)
			return commands.Result{}, &sderr.CommandCancelled{Command: p.req.Command}
		case <-queued.C:
			if p.claimed.CompareAndSwap(false, true) {
				return commands.Result{}, &sderr.CommandTimeout{Command: p.req.Command, Timeout: p.c.cfg.QueueTimeout}
			}
			// already running; its own timeouts bound the wait
		}
	}
}

// Enqueue appends req to the command queue. Requests are transmitted in
// FIFO order once the controller is Ready.
func (c *Controller) Enqueue(ctx context.Context, req commands.Request) (*Pending, error) {
	p := &Pending{req: req, ctx: ctx, reply: make(chan outcome, 1), c: c}
	select {
	case <-c.closed:
		return nil, &sderr.CommandCancelled{Command: req.Command}
	default:
	}
	select {
	case c.queue <- p:
		return p, nil
	case <-ctx.Done():
		return nil, &sderr.CommandCancelled{Command: req.Command}
	case <-c.closed:
		return nil, &sderr.CommandCancelled{Command: req.Command}
	}
}

// SendCommand queues req and waits for its result. Failures are
// CommandTimeout, CommandCancelled or a transport error.
func (c *Controller) SendCommand(ctx context.Context, req commands.Request) (commands.Result, error) {
	p, err := c.Enqueue(ctx, req)
	if err != nil {
		return commands.Result{}, err
	}
	return p.Wait()
}

func (c *Controller) waitReady(ctx context.Context) bool {
	c.mu.Lock()
	ch := c.ready
	c.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) drainLoop() {
	defer c.wg.Done()
	for {
		var p *Pending
		select {
		case <-c.ctx.Done():
			return
		case p = <-c.queue:
		}

		if !c.waitReady(c.ctx) {
			p.finish(commands.Result{}, &sderr.CommandCancelled{Command: p.req.Command})
			return
		}
		if !p.claimed.CompareAndSwap(false, true) {
			continue
		}

		ctx, cancel := context.WithCancel(c.ctx)
		stop := context.AfterFunc(p.ctx, cancel)
		res, err := c.send(ctx, p.req)
		stop()
		cancel()
		p.finish(res, err)
	}
}

// send writes one request and waits for its response, retrying on timeout
func (c *Controller) send(ctx context.Context, req commands.Request) (commands.Result, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = commands.DefaultTimeout
	}
	log := c.logger.With().Str("command", req.Command).Logger()

	attempts := 0
	for attempts <= req.Retries {
		attempts++

		if wait := c.cfg.WriteGap - time.Since(c.lastWrite); wait > 0 {
			if !c.sleep(ctx, wait) {
				return commands.Result{}, &sderr.CommandCancelled{Command: req.Command}
			}
		}

		var f *inflight
		if !req.NoResponse {
			f = &inflight{req: req, resp: make(chan string, 1)}
			c.setInflight(f)
		}

		log.Debug().Int("attempt", attempts).Msg("sending command")
		err := c.transport.WriteLine(req.Command)
		c.lastWrite = time.Now()
		if err != nil {
			c.clearInflight(f)
			c.reportLinkError(err)
			return commands.Result{}, fmt.Errorf("failed to write command %q: %w", req.Command, err)
		}
		if req.NoResponse {
			return commands.Result{Command: req.Command, Attempts: attempts}, nil
		}

		timer := time.NewTimer(timeout)
		select {
		case line := <-f.resp:
			timer.Stop()
			return commands.Result{Command: req.Command, Response: line, Attempts: attempts}, nil
		case <-ctx.Done():
			timer.Stop()
			c.clearInflight(f)
			return commands.Result{}, &sderr.CommandCancelled{Command: req.Command}
		case <-timer.C:
			c.clearInflight(f)
			select {
			case line := <-f.resp:
				return commands.Result{Command: req.Command, Response: line, Attempts: attempts}, nil
			default:
			}
			log.Debug().Int("attempt", attempts).Dur("timeout", timeout).Msg("command timed out")
		}
	}
	return commands.Result{}, &sderr.CommandTimeout{Command: req.Command, Timeout: timeout, Attempts: attempts}
}
