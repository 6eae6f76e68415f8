package worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"multichat-backend/internal/chat"
	"multichat-backend/internal/metrics"
	"multichat-backend/internal/models"
)

var (
	ErrQueueFull   = errors.New("turn queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

type turnSubmitter interface {
	Submit(ctx context.Context, id uuid.UUID, message, model string) (*chat.TurnResult, error)
}

// CompletionFunc receives the outcome of every queued turn exactly once.
type CompletionFunc func(job models.TurnJob, result *chat.TurnResult, err error)

// Pool runs turns off the request goroutine so the caller can return
// immediately and receive the reply later through the completion callback.
// Turns of one conversation run one at a time, in the order they were queued.
type Pool struct {
	service     turnSubmitter
	onComplete  CompletionFunc
	jobs        chan models.TurnJob
	workerCount int
	stopChan    chan struct{}
	wg          sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	// backlog has an entry for every conversation with a turn on the jobs
	// channel or in flight; the value holds the turns queued behind it.
	convMu  sync.Mutex
	backlog map[uuid.UUID][]models.TurnJob
	parked  int
}

func NewPool(service turnSubmitter, onComplete CompletionFunc, workerCount, queueSize int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		service:     service,
		onComplete:  onComplete,
		jobs:        make(chan models.TurnJob, queueSize),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
		backlog:     make(map[uuid.UUID][]models.TurnJob),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

// Stop waits for in-flight turns to finish. Turns still queued, including
// those waiting behind another turn of their conversation, are reported to
// the completion callback with ErrPoolStopped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	for {
		select {
		case job := <-p.jobs:
			metrics.QueuedTurns.Dec()
			p.onComplete(job, nil, ErrPoolStopped)
			p.abandon(job.ConversationID)
		default:
			return
		}
	}
}

// Enqueue assigns the job an ID if it has none and queues it without blocking.
// The queue size bounds all waiting turns, parked ones included.
func (p *Pool) Enqueue(job models.TurnJob) (models.TurnJob, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return job, ErrPoolStopped
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	p.convMu.Lock()
	defer p.convMu.Unlock()

	if waiting, busy := p.backlog[job.ConversationID]; busy {
		if len(p.jobs)+p.parked >= cap(p.jobs) {
			return job, ErrQueueFull
		}
		p.backlog[job.ConversationID] = append(waiting, job)
		p.parked++
		metrics.QueuedTurns.Inc()
		return job, nil
	}

	select {
	case p.jobs <- job:
		p.backlog[job.ConversationID] = nil
		metrics.QueuedTurns.Inc()
		return job, nil
	default:
		return job, ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		case job := <-p.jobs:
			p.run(id, job)
		}
	}
}

// run processes job and then every turn parked behind it.
func (p *Pool) run(id int, job models.TurnJob) {
	for {
		metrics.QueuedTurns.Dec()
		p.process(id, job)

		select {
		case <-p.stopChan:
			p.abandon(job.ConversationID)
			return
		default:
		}

		next, ok := p.next(job.ConversationID)
		if !ok {
			return
		}
		job = next
	}
}

// next pops the conversation's next parked turn, releasing the conversation
// when nothing is waiting.
func (p *Pool) next(conversationID uuid.UUID) (models.TurnJob, bool) {
	p.convMu.Lock()
	defer p.convMu.Unlock()

	waiting := p.backlog[conversationID]
	if len(waiting) == 0 {
		delete(p.backlog, conversationID)
		return models.TurnJob{}, false
	}
	p.backlog[conversationID] = waiting[1:]
	p.parked--
	return waiting[0], true
}

func (p *Pool) abandon(conversationID uuid.UUID) {
	p.convMu.Lock()
	waiting := p.backlog[conversationID]
	delete(p.backlog, conversationID)
	p.parked -= len(waiting)
	p.convMu.Unlock()

	for _, job := range waiting {
		metrics.QueuedTurns.Dec()
		p.onComplete(job, nil, ErrPoolStopped)
	}
}

func (p *Pool) process(id int, job models.TurnJob) {
	log.Printf("Worker %d: processing job %s (conversation: %s, model: %s)", id, job.ID, job.ConversationID, job.Model)

	// No deadline: the turn runs until its backend call returns.
	result, err := p.service.Submit(context.Background(), job.ConversationID, job.Message, job.Model)
	if err != nil {
		log.Printf("Worker %d: job %s failed: %v", id, job.ID, err)
	}
	p.onComplete(job, result, err)
}
