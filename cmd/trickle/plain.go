package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/trickle"
	bt "github.com/fwojciec/trickle/bubbletea"
	"github.com/fwojciec/trickle/goldmark"
)

// plainOptions configures the headless reveal loop.
type plainOptions struct {
	width  int
	fps    int
	theme  trickle.Theme
	pacing trickle.Pacing
	logger *slog.Logger
}

// printer reveals one assistant turn and writes each block once, when it
// becomes stable or when the reveal completes.
type printer struct {
	w       io.Writer
	opts    plainOptions
	sched   *trickle.Scheduler
	seg     *goldmark.Segmenter
	printed int
	index   int
	started bool
	done    bool
	err     error
}

func newPrinter(w io.Writer, frames trickle.FrameScheduler, opts plainOptions) *printer {
	p := &printer{
		w:    w,
		opts: opts,
		seg:  goldmark.NewSegmenter(goldmark.WithLogger(opts.logger)),
	}
	p.sched = trickle.NewScheduler(frames, p.update, trickle.WithPacing(opts.pacing))
	return p
}

// handle pushes text deltas. Deltas for a new content index start a new
// paragraph; thinking is not printed.
func (p *printer) handle(evt trickle.Event) {
	e, ok := evt.(trickle.EventTextDelta)
	if !ok {
		return
	}
	delta := e.Delta
	if p.started && e.Index != p.index {
		delta = "\n\n" + delta
	}
	p.started = true
	p.index = e.Index
	if err := p.sched.Push(delta); err != nil {
		p.opts.logger.Warn("delta dropped", "error", err)
	}
}

func (p *printer) update(st trickle.RevealState) {
	if st.Total == 0 && !st.Complete {
		return
	}
	blocks := p.seg.Process(p.sched.Revealed())
	for p.printed < len(blocks) && blocks[p.printed].Status == trickle.BlockStable {
		p.print(blocks[p.printed])
	}
	if st.Complete {
		for p.printed < len(blocks) {
			p.print(blocks[p.printed])
		}
		p.done = true
	}
}

func (p *printer) print(b *trickle.Block) {
	if p.err != nil {
		p.printed++
		return
	}
	sep := ""
	if p.printed > 0 {
		sep = "\n"
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", sep, goldmark.RenderBlock(b, p.opts.width, p.opts.theme))
	p.printed++
}

// drain handles events already buffered in events without blocking.
func (p *printer) drain(events <-chan trickle.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			p.handle(e)
		default:
			return
		}
	}
}

// runPlain runs one turn and reveals its text on w at the configured pace.
// Deltas and frames are serialized in a single select loop.
func runPlain(ctx context.Context, w io.Writer, run bt.AgentFunc, session *trickle.Session, opts plainOptions) error {
	events := make(chan trickle.Event, 256)
	done := make(chan error, 1)
	go func() {
		err := run(ctx, session, func(e trickle.Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		})
		close(events)
		done <- err
	}()

	var queue trickle.FrameQueue
	p := newPrinter(w, &queue, opts)
	ticker := time.NewTicker(time.Second / time.Duration(opts.fps))
	defer ticker.Stop()

	var runErr error
	for !p.done {
		select {
		case e, ok := <-events:
			if !ok {
				events = nil
				runErr = <-done
				p.sched.End()
				continue
			}
			p.handle(e)
		case now := <-ticker.C:
			queue.Fire(now)
		case <-ctx.Done():
			p.drain(events)
			p.sched.End()
			p.sched.Skip()
			if p.err != nil {
				return p.err
			}
			return ctx.Err()
		}
		if p.err != nil {
			p.sched.Stop()
			return p.err
		}
	}
	return runErr
}
