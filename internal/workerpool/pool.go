// Package workerpool runs a bounded pool of goroutines under a tomb.v2
// supervisor, each pulling tasks off a shared channel and actioning them
// with a caller-supplied function.
package workerpool

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunction actions one task. It returns an error only for failures
// that should bring the owning tomb down; per-task failures should be
// handled (logged, reported) inside work itself.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// Pool is a fixed-size pool of workers sharing one task queue.
type Pool struct {
	n     int
	tasks chan any
	work  WorkerFunction
}

// New returns a Pool sized for size concurrent workers.
func New(size int) Pool {
	return Pool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

// AddTask enqueues a task for the next free worker. It blocks if the
// queue is full.
func (pool *Pool) AddTask(task any) {
	pool.tasks <- task
}

// Setup spawns the pool's workers under t, each running work. It returns
// once the pool is at full strength; workers keep running until t dies.
func (pool *Pool) Setup(t *tomb.Tomb, work WorkerFunction) {
	pool.work = work
	log.Info().Int("workers", pool.n).Msg("starting worker pool")
	for i := 0; i < pool.n; i++ {
		t.Go(func() error {
			return pool.worker(t)
		})
	}
}

// worker pulls tasks until the tomb dies, restarting after every task so
// a single failing task does not retire the goroutine.
func (pool *Pool) worker(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := pool.work(t, task); err != nil {
				log.Error().Err(err).Msg("worker task failed")
			}
		}
	}
}
