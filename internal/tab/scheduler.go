package tab

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs callbacks later. Callbacks run on scheduler goroutines; the
// tab moves them onto its own loop.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) (cancel func())
	Every(d time.Duration, fn func()) (cancel func())
}

// CronScheduler backs intervals with a cron runner and one-shots with
// time.AfterFunc. One instance is shared by every tab of the agent.
type CronScheduler struct {
	cron *cron.Cron
}

// NewCronScheduler creates and starts a scheduler.
func NewCronScheduler() *CronScheduler {
	c := cron.New()
	c.Start()
	return &CronScheduler{cron: c}
}

func (s *CronScheduler) Now() time.Time {
	return time.Now()
}

func (s *CronScheduler) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Every schedules fn at a fixed period. cron.Every rounds below one second
// up to one second.
func (s *CronScheduler) Every(d time.Duration, fn func()) func() {
	id := s.cron.Schedule(cron.Every(d), cron.FuncJob(fn))
	return func() { s.cron.Remove(id) }
}

// Stop stops the runner; the returned context is done once running jobs finish.
func (s *CronScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// ManualScheduler is a deterministic scheduler driven by Advance.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	seq   int
	at    time.Time
	every time.Duration
	fn    func()
}

// NewManualScheduler creates a scheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) func() {
	return s.add(d, 0, fn)
}

func (s *ManualScheduler) Every(d time.Duration, fn func()) func() {
	if d <= 0 {
		d = time.Millisecond
	}
	return s.add(d, d, fn)
}

func (s *ManualScheduler) add(d, every time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	task := &manualTask{seq: s.seq, at: s.now.Add(d), every: every, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() { s.remove(task) }
}

func (s *ManualScheduler) remove(task *manualTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(task)
}

// Pending returns the number of scheduled tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Advance moves the clock forward by d, running every task that comes due
// in time order. Tasks scheduled by running tasks are honored if they fall
// inside the window.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	for {
		task := s.nextDue(target)
		if task == nil {
			break
		}
		s.now = task.at
		if task.every > 0 {
			task.at = task.at.Add(task.every)
		} else {
			s.removeLocked(task)
		}
		s.mu.Unlock()
		task.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

func (s *ManualScheduler) nextDue(target time.Time) *manualTask {
	due := make([]*manualTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

func (s *ManualScheduler) removeLocked(task *manualTask) {
	for i, t := range s.tasks {
		if t == task {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}
