package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/okapi/engine/containers"
	"github.com/spaghettifunk/okapi/engine/core"
)

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemClosed     = errors.New("job system is shut down")
)

// Job runs on a worker goroutine. OnComplete and OnFailure run later on the
// goroutine that calls Update, so they may touch GPU objects.
type Job struct {
	Name       string
	Run        func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobOutcome struct {
	job    Job
	result interface{}
	err    error
}

// JobSystem is a fixed pool of workers. Outcomes wait in a ring queue until
// Update delivers them; a worker blocks while the queue is full.
type JobSystem struct {
	numWorkers int
	jobQueue   chan Job
	sendMu     sync.RWMutex
	wg         sync.WaitGroup

	mu       sync.Mutex
	changed  *sync.Cond
	outcomes *containers.RingQueue[jobOutcome]
	closed   bool
	stopped  bool
	inflight int
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
		outcomes:   containers.NewRingQueue[jobOutcome](numWorkers + channelSize),
	}
	js.changed = sync.NewCond(&js.mu)
	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := job.Run()
				if err != nil {
					core.LogError("job %s failed: %s", job.Name, err)
				}
				js.finish(jobOutcome{job: job, result: result, err: err})
			}
		}()
	}
}

func (js *JobSystem) finish(o jobOutcome) {
	js.mu.Lock()
	defer js.mu.Unlock()
	for js.outcomes.IsFull() {
		js.changed.Wait()
	}
	_ = js.outcomes.Enqueue(o)
	js.changed.Broadcast()
}

// Submit queues a job. It blocks while the job channel is full.
func (js *JobSystem) Submit(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %s has nothing to run", job.Name)
	}
	js.sendMu.RLock()
	defer js.sendMu.RUnlock()

	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return ErrJobSystemClosed
	}
	js.inflight++
	js.mu.Unlock()

	js.jobQueue <- job
	return nil
}

// Update delivers finished jobs to their callbacks. Should happen once an
// update cycle. It returns how many were delivered.
func (js *JobSystem) Update() int {
	js.mu.Lock()
	var ready []jobOutcome
	for !js.outcomes.IsEmpty() {
		o, _ := js.outcomes.Dequeue()
		ready = append(ready, o)
	}
	js.inflight -= len(ready)
	js.changed.Broadcast()
	js.mu.Unlock()

	for _, o := range ready {
		if o.err != nil {
			if o.job.OnFailure != nil {
				o.job.OnFailure(o.err)
			}
			continue
		}
		if o.job.OnComplete != nil {
			o.job.OnComplete(o.result)
		}
	}
	return len(ready)
}

// Pending is the number of submitted jobs not yet delivered by Update.
func (js *JobSystem) Pending() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.inflight
}

// Shutdown stops accepting jobs, waits for the workers and delivers every
// remaining outcome.
func (js *JobSystem) Shutdown() error {
	js.sendMu.Lock()
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		js.sendMu.Unlock()
		return nil
	}
	js.closed = true
	js.mu.Unlock()
	close(js.jobQueue)
	js.sendMu.Unlock()

	go func() {
		js.wg.Wait()
		js.mu.Lock()
		js.stopped = true
		js.changed.Broadcast()
		js.mu.Unlock()
	}()

	for {
		js.mu.Lock()
		for js.outcomes.IsEmpty() && !js.stopped {
			js.changed.Wait()
		}
		stopped := js.stopped
		js.mu.Unlock()

		js.Update()
		if stopped {
			return nil
		}
	}
}
