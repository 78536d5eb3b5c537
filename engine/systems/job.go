package systems

import (
	"fmt"
	"sync"

	"github.com/veilworld/engine/engine/core"
	"github.com/veilworld/engine/engine/resources"
)

// Task is one unit of asynchronous pipeline work: a load or a procedural
// generation run with its completion callback.
type Task struct {
	ID         string
	Execute    func() (*resources.MeshResource, error)
	OnComplete func(*resources.MeshResource, error)
}

// JobSystem is a fixed-size worker pool executing pipeline tasks off the
// caller's goroutine.
type JobSystem struct {
	numWorkers int
	jobQueue   chan Task
	wg         sync.WaitGroup
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan Task, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for task := range js.jobQueue {
				mesh, err := task.Execute()
				if err != nil {
					core.LogDebug("task %s finished with error: %s", task.ID, err.Error())
				}
				if task.OnComplete != nil {
					task.OnComplete(mesh, err)
				}
			}
		}()
	}
}

// Submit queues the task, blocking when the queue is full.
func (js *JobSystem) Submit(task Task) {
	js.jobQueue <- task
}

// Shutdown drains the queue and stops the workers.
func (js *JobSystem) Shutdown() error {
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}
