package session

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Task is one periodic cleanup step.
type Task func(ctx context.Context, now time.Time)

// Janitor runs cleanup tasks on a fixed interval until stopped.
type Janitor struct {
	interval time.Duration
	tasks    []Task
	stopChan chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

func NewJanitor(interval time.Duration, tasks ...Task) *Janitor {
	return &Janitor{
		interval: interval,
		tasks:    tasks,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (j *Janitor) Start() {
	if !j.started.CompareAndSwap(false, true) {
		return
	}
	go j.loop()
	log.Printf("Session janitor started (every %s)", j.interval)
}

// Stop ends the loop and waits for a running pass to finish. It may be
// called repeatedly, even if Start never ran.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
	if j.started.Load() {
		<-j.done
	}
}

func (j *Janitor) loop() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.run(context.Background(), time.Now())
		}
	}
}

func (j *Janitor) run(ctx context.Context, now time.Time) {
	for _, task := range j.tasks {
		task(ctx, now)
	}
}
