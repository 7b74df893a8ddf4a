/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package autosave persists an editing session periodically and on demand.
//
// A single loop goroutine performs every save, so at most one save is in flight.
// Timer ticks and explicit requests share a one-slot queue: a trigger arriving
// while a save runs waits in the slot, further triggers are dropped, and the
// queued save snapshots the document only when it starts.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"screenwriter/internal/domain"
	applog "screenwriter/internal/log"
)

// DefaultInterval is the autosave period when none is configured.
const DefaultInterval = 10 * time.Second

// Source provides the document to save.
type Source interface {
	DocumentID() string
	Snapshot() []domain.ScriptElement
}

// versioned sources let the coordinator report which revision a save covered.
type versioned interface {
	Versioned() ([]domain.ScriptElement, uint64)
	Revision() uint64
	MarkSaved(rev uint64)
}

// Saver persists an ordered element sequence, all or nothing.
type Saver interface {
	SaveElements(ctx context.Context, documentID string, elements []domain.ScriptElement) error
}

// Trigger names what started a save.
type Trigger string

const (
	TriggerTimer  Trigger = "timer"
	TriggerManual Trigger = "manual"
	TriggerStop   Trigger = "stop"
)

// Result describes one finished save attempt. Err is a *domain.PersistenceError on failure.
type Result struct {
	DocumentID string
	Trigger    Trigger
	Revision   uint64
	Elements   int
	Started    time.Time
	Finished   time.Time
	Err        error
}

// Config controls the coordinator. Enabled only governs the timer; SaveNow always works.
type Config struct {
	Enabled     bool
	Interval    time.Duration
	SaveTimeout time.Duration
	SaveOnStop  bool
}

type Option func(*Coordinator)

// WithObserver registers a callback invoked from the save loop after every attempt.
// It must not block for long.
func WithObserver(fn func(Result)) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, fn) }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option { return func(c *Coordinator) { c.logger = l } }

// Coordinator owns the autosave task of one editing session.
type Coordinator struct {
	src       Source
	saver     Saver
	cfg       Config
	observers []func(Result)
	logger    *slog.Logger

	queue    chan Trigger
	inFlight atomic.Bool

	mu      sync.Mutex
	last    Result
	hasLast bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(src Source, saver Saver, cfg Config, opts ...Option) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	c := &Coordinator{src: src, saver: saver, cfg: cfg, queue: make(chan Trigger, 1)}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = applog.WithComponent("autosave")
	}
	c.logger = applog.WithDocument(c.logger, src.DocumentID())
	return c
}

// Start launches the save loop and, when enabled, the interval timer.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return fmt.Errorf("%w: autosave already started", domain.ErrInvalidOperation)
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	if c.cfg.Enabled {
		go c.tick(ctx)
	}
	go c.loop(ctx, c.done)
	c.logger.Debug("autosave started", slog.Bool("timer", c.cfg.Enabled), slog.Duration("interval", c.cfg.Interval))
	return nil
}

// Stop ends the timer, waits for an in-flight save, runs a save still queued by
// SaveNow and, if configured, saves once more unless the last save is current.
// Stop is safe to call more than once.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SaveNow requests an immediate save. It reports false when a save is already queued
// behind the current one, in which case the request is covered by that queued save.
func (c *Coordinator) SaveNow() bool { return c.enqueue(TriggerManual) }

// Saving reports whether a save is in flight.
func (c *Coordinator) Saving() bool { return c.inFlight.Load() }

// LastResult returns the outcome of the most recent save attempt.
func (c *Coordinator) LastResult() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

func (c *Coordinator) enqueue(t Trigger) bool {
	select {
	case c.queue <- t:
		return true
	default:
		return false
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.enqueue(TriggerTimer)
		}
	}
}

// loop is the only goroutine that saves. Saves run detached from ctx so Stop
// never cuts one short; SaveTimeout is their only deadline.
func (c *Coordinator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	saveCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			// A save accepted by SaveNow still runs after Stop.
			select {
			case t := <-c.queue:
				c.save(saveCtx, t)
			default:
			}
			if c.cfg.SaveOnStop && !c.upToDate() {
				c.save(saveCtx, TriggerStop)
			}
			return
		case t := <-c.queue:
			c.save(saveCtx, t)
		}
	}
}

// upToDate reports whether the last save succeeded on the source's current revision.
func (c *Coordinator) upToDate() bool {
	vs, ok := c.src.(versioned)
	if !ok {
		return false
	}
	res, saved := c.LastResult()
	return saved && res.Err == nil && vs.Revision() == res.Revision
}

func (c *Coordinator) save(ctx context.Context, trigger Trigger) {
	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	var (
		els []domain.ScriptElement
		rev uint64
	)
	vs, isVersioned := c.src.(versioned)
	if isVersioned {
		els, rev = vs.Versioned()
	} else {
		els = c.src.Snapshot()
	}
	if c.cfg.SaveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.SaveTimeout)
		defer cancel()
	}

	res := Result{DocumentID: c.src.DocumentID(), Trigger: trigger, Revision: rev, Elements: len(els), Started: time.Now()}
	err := c.saver.SaveElements(ctx, res.DocumentID, els)
	res.Finished = time.Now()
	l := c.logger.With(slog.String("trigger", string(trigger)), slog.Int("elements", len(els)), slog.Duration("took", res.Finished.Sub(res.Started)))
	if err != nil {
		res.Err = &domain.PersistenceError{Op: "save", DocumentID: res.DocumentID, Err: err}
		l.Warn("autosave failed", slog.Any("err", err))
	} else {
		if isVersioned {
			vs.MarkSaved(rev)
		}
		l.Debug("saved")
	}

	c.mu.Lock()
	c.last, c.hasLast = res, true
	c.mu.Unlock()
	for _, fn := range c.observers {
		fn(res)
	}
}
