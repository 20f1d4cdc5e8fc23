package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/SoarinFerret/BlockWarden/internal/schedule"
	"github.com/SoarinFerret/BlockWarden/internal/session"
	"github.com/SoarinFerret/BlockWarden/internal/store"
)

const writeTimeout = 10 * time.Second

// job is one snapshot to persist, or a flush barrier.
type job struct {
	session   *session.State
	schedules []schedule.Schedule
	barrier   chan struct{}
}

// writer persists snapshots in the order they were queued. Queuing never
// blocks, so a slow store does not hold up the next snapshot.
type writer struct {
	store   store.Store
	log     *zap.SugaredLogger
	onError func(error)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []job
	closed bool
	done   chan struct{}

	sessionDirty   atomic.Bool
	schedulesDirty atomic.Bool
}

func newWriter(st store.Store, log *zap.SugaredLogger, onError func(error)) *writer {
	w := &writer{
		store:   st,
		log:     log,
		onError: onError,
		done:    make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *writer) enqueue(j job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.queue = append(w.queue, j)
	w.cond.Signal()
	return true
}

func (w *writer) saveSession(st session.State) {
	w.enqueue(job{session: &st})
}

func (w *writer) saveSchedules(schedules []schedule.Schedule) {
	w.enqueue(job{schedules: schedules})
}

// flush waits until every snapshot queued before the call has been written.
func (w *writer) flush() {
	barrier := make(chan struct{})
	if !w.enqueue(job{barrier: barrier}) {
		return
	}
	<-barrier
}

// close drains the queue and stops the writer goroutine.
func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	<-w.done
}

func (w *writer) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		j := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.process(j)
	}
}

func (w *writer) process(j job) {
	if j.barrier != nil {
		close(j.barrier)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if j.session != nil {
		err := w.store.SaveSession(ctx, *j.session)
		w.sessionDirty.Store(err != nil)
		w.report("session state", err)
		return
	}
	err := w.store.SaveSchedules(ctx, j.schedules)
	w.schedulesDirty.Store(err != nil)
	w.report("schedule list", err)
}

func (w *writer) report(what string, err error) {
	if err == nil {
		return
	}
	w.log.Warnf("Failed to persist %s, will retry on next change: %v", what, err)
	if w.onError != nil {
		w.onError(err)
	}
}
