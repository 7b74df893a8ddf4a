/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenwriter/internal/domain"
	"screenwriter/internal/editor"
)

// blockingSaver counts calls and the peak number of concurrent calls.
// When gate is non-nil every call waits for a value on it.
type blockingSaver struct {
	gate    chan struct{}
	entered chan struct{}

	mu      sync.Mutex
	calls   int
	active  int
	peak    int
	saved   [][]domain.ScriptElement
	failFor int
}

func newBlockingSaver(blocking bool) *blockingSaver {
	s := &blockingSaver{entered: make(chan struct{}, 16)}
	if blocking {
		s.gate = make(chan struct{})
	}
	return s
}

func (s *blockingSaver) SaveElements(ctx context.Context, _ string, els []domain.ScriptElement) error {
	s.mu.Lock()
	s.calls++
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	fail := s.calls <= s.failFor
	s.mu.Unlock()
	select {
	case s.entered <- struct{}{}:
	default:
	}

	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	s.active--
	if !fail {
		s.saved = append(s.saved, els)
	}
	s.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return nil
}

func (s *blockingSaver) stats() (calls, peak int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.peak
}

func waitEntered(t *testing.T, s *blockingSaver) {
	t.Helper()
	select {
	case <-s.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("save was not dispatched")
	}
}

func newSession() *editor.Session {
	return editor.New("doc-1", []domain.ScriptElement{{ID: "a", Type: domain.Action, Content: "start"}}, editor.Options{})
}

func TestTwoTriggersDuringInFlightSaveCoalesce(t *testing.T) {
	sess := newSession()
	saver := newBlockingSaver(true)
	c := New(sess, saver, Config{Enabled: false})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	assert.True(t, c.SaveNow())
	waitEntered(t, saver)
	assert.True(t, c.Saving())

	// edit while the first save is in flight; the follow-up must see it
	require.NoError(t, sess.ContentChanged(0, "changed"))
	assert.True(t, c.SaveNow(), "first trigger is queued")
	assert.False(t, c.SaveNow(), "second trigger is dropped")

	saver.gate <- struct{}{}
	waitEntered(t, saver)
	saver.gate <- struct{}{}

	require.Eventually(t, func() bool { return !c.Saving() }, time.Second, 5*time.Millisecond)
	// give a stray third save a chance to show up
	time.Sleep(50 * time.Millisecond)
	calls, peak := saver.stats()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, peak)

	saver.mu.Lock()
	defer saver.mu.Unlock()
	require.Len(t, saver.saved, 2)
	assert.Equal(t, "start", saver.saved[0][0].Content)
	assert.Equal(t, "changed", saver.saved[1][0].Content)
}

func TestTimerTriggersSaves(t *testing.T) {
	sess := newSession()
	saver := newBlockingSaver(false)
	var results atomic.Int32
	c := New(sess, saver, Config{Enabled: true, Interval: 10 * time.Millisecond},
		WithObserver(func(r Result) {
			if r.Trigger == TriggerTimer && r.Err == nil {
				results.Add(1)
			}
		}))
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return results.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	c.Stop()

	_, peak := saver.stats()
	assert.Equal(t, 1, peak)
	res, ok := c.LastResult()
	require.True(t, ok)
	assert.Equal(t, "doc-1", res.DocumentID)
	assert.Equal(t, 1, res.Elements)
}

func TestDisabledTimerStillSavesOnDemand(t *testing.T) {
	saver := newBlockingSaver(false)
	c := New(newSession(), saver, Config{Enabled: false, Interval: time.Millisecond})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	time.Sleep(30 * time.Millisecond)
	calls, _ := saver.stats()
	assert.Equal(t, 0, calls)

	c.SaveNow()
	waitEntered(t, saver)
}

func TestFailureIsReportedAndNextTriggerRetries(t *testing.T) {
	sess := newSession()
	saver := newBlockingSaver(false)
	saver.failFor = 1
	got := make(chan Result, 4)
	c := New(sess, saver, Config{}, WithObserver(func(r Result) { got <- r }))
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.NoError(t, sess.ContentChanged(0, "edited"))
	c.SaveNow()
	first := <-got
	var pe *domain.PersistenceError
	require.ErrorAs(t, first.Err, &pe)
	assert.Equal(t, "save", pe.Op)
	assert.Equal(t, "doc-1", pe.DocumentID)
	assert.True(t, sess.Dirty(), "failed save leaves the session dirty")

	// session stays editable
	require.NoError(t, sess.AppendNew())

	c.SaveNow()
	second := <-got
	require.NoError(t, second.Err)
	assert.Equal(t, 2, second.Elements)
	assert.False(t, sess.Dirty())
}

func TestStopSavesOnce(t *testing.T) {
	saver := newBlockingSaver(false)
	c := New(newSession(), saver, Config{SaveOnStop: true})
	require.NoError(t, c.Start(context.Background()))
	c.Stop()
	c.Stop()
	calls, _ := saver.stats()
	assert.Equal(t, 1, calls)
	res, ok := c.LastResult()
	require.True(t, ok)
	assert.Equal(t, TriggerStop, res.Trigger)
}

func TestStartTwice(t *testing.T) {
	c := New(newSession(), newBlockingSaver(false), Config{})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	assert.ErrorIs(t, c.Start(context.Background()), domain.ErrInvalidOperation)
}

type slowSaver struct{}

func (slowSaver) SaveElements(ctx context.Context, _ string, _ []domain.ScriptElement) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSaveTimeout(t *testing.T) {
	got := make(chan Result, 1)
	c := New(newSession(), slowSaver{}, Config{SaveTimeout: 20 * time.Millisecond}, WithObserver(func(r Result) { got <- r }))
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	c.SaveNow()
	select {
	case r := <-got:
		assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("save did not time out")
	}
}

// stopWhileQueued starts a save, queues a second one behind it, edits the
// session so the queued save has something new, then stops the coordinator
// before releasing the first save.
func stopWhileQueued(t *testing.T, cfg Config) (*Coordinator, *blockingSaver) {
	t.Helper()
	sess := newSession()
	saver := newBlockingSaver(true)
	c := New(sess, saver, cfg)
	require.NoError(t, c.Start(context.Background()))

	require.True(t, c.SaveNow())
	waitEntered(t, saver)
	require.NoError(t, sess.ContentChanged(0, "changed"))
	require.True(t, c.SaveNow(), "trigger queued behind the running save")

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()
	// let Stop cancel the loop context while the first save still blocks
	time.Sleep(10 * time.Millisecond)
	saver.gate <- struct{}{}
	waitEntered(t, saver)
	saver.gate <- struct{}{}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	return c, saver
}

func TestStopRunsQueuedSave(t *testing.T) {
	// the loop picks between a cancelled context and a full queue at random
	for i := 0; i < 20; i++ {
		_, saver := stopWhileQueued(t, Config{})
		calls, peak := saver.stats()
		require.Equal(t, 2, calls, "run %d", i)
		assert.Equal(t, 1, peak)
		saver.mu.Lock()
		assert.Equal(t, "changed", saver.saved[1][0].Content)
		saver.mu.Unlock()
	}
}

func TestStopSkipsStopSaveCoveredByQueuedSave(t *testing.T) {
	for i := 0; i < 20; i++ {
		c, saver := stopWhileQueued(t, Config{SaveOnStop: true})
		calls, _ := saver.stats()
		require.Equal(t, 2, calls, "run %d", i)
		res, ok := c.LastResult()
		require.True(t, ok)
		assert.Equal(t, TriggerManual, res.Trigger)
	}
}
