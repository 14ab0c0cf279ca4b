package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/kode4food/quarry/pkg/log"
)

type (
	// Scheduler fires tasks at their deadlines from a single goroutine.
	// Task functions must not block on work that schedules or cancels
	Scheduler struct {
		now       Clock
		makeTimer TimerConstructor
		reqs      chan taskReq
	}

	// TaskFunc is called with the scheduler's time once its deadline passes
	TaskFunc func(now time.Time) error

	taskOp uint8

	taskReq struct {
		task *Task
		key  []string
		op   taskOp
	}
)

const (
	opSchedule taskOp = iota
	opCancel
	opCancelPrefix
)

const requestBuffer = 128

// New creates a scheduler using the provided clock and timer constructor
func New(now Clock, makeTimer TimerConstructor) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if makeTimer == nil {
		makeTimer = NewTimer
	}
	return &Scheduler{
		now:       now,
		makeTimer: makeTimer,
		reqs:      make(chan taskReq, requestBuffer),
	}
}

// Now returns the scheduler clock's current time
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// Schedule registers fn to run at the deadline, replacing any task already
// registered under key
func (s *Scheduler) Schedule(
	ctx context.Context, key []string, at time.Time, fn TaskFunc,
) {
	s.send(ctx, taskReq{
		op:   opSchedule,
		task: &Task{Func: fn, At: at, Key: key},
	})
}

// Cancel removes the task registered under the exact key
func (s *Scheduler) Cancel(ctx context.Context, key []string) {
	s.send(ctx, taskReq{op: opCancel, key: key})
}

// CancelPrefix removes every task whose key starts with prefix
func (s *Scheduler) CancelPrefix(ctx context.Context, prefix []string) {
	s.send(ctx, taskReq{op: opCancelPrefix, key: prefix})
}

// Run processes scheduler requests until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	timer := s.makeTimer(0)
	var timerCh <-chan time.Time
	tasks := NewTaskHeap()

	resetTimer := func() {
		next := tasks.Peek()
		if next == nil {
			timer.Stop()
			timerCh = nil
			return
		}
		timer.Reset(next.At.Sub(s.now()))
		timerCh = timer.Channel()
	}

	resetTimer()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case req := <-s.reqs:
			switch req.op {
			case opSchedule:
				tasks.Insert(req.task)
			case opCancel:
				tasks.Cancel(req.key)
			case opCancelPrefix:
				tasks.CancelPrefix(req.key)
			}
			resetTimer()
		case <-timerCh:
			if task := tasks.PopTask(); task != nil {
				if err := task.Func(s.now()); err != nil {
					slog.Error("Scheduled task failed",
						slog.Any("key", task.Key),
						log.Error(err))
				}
			}
			resetTimer()
		}
	}
}

func (s *Scheduler) send(ctx context.Context, req taskReq) {
	select {
	case s.reqs <- req:
	case <-ctx.Done():
	}
}
