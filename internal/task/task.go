package task

import (
	"sync"
	"sync/atomic"
	"time"
)

type TaskFunc = func(cancelTask *atomic.Bool)

type TaskHandle struct {
	cancel       atomic.Bool
	taskCanceled sync.WaitGroup
}

func Start(taskFunc TaskFunc) *TaskHandle {
	taskHandle := &TaskHandle{
		cancel:       atomic.Bool{},
		taskCanceled: sync.WaitGroup{},
	}
	taskHandle.taskCanceled.Add(1)
	go func() {
		taskFunc(&taskHandle.cancel)
		taskHandle.taskCanceled.Done()
	}()
	return taskHandle
}

// StartPeriodic runs taskFunc every interval until the handle is cancelled.
// A send on trigger runs the function ahead of schedule; trigger may be nil.
func StartPeriodic(interval time.Duration, trigger <-chan struct{}, taskFunc func()) *TaskHandle {
	return Start(func(cancelTask *atomic.Bool) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
			case _, ok := <-trigger:
				if !ok {
					return
				}
			}
			if cancelTask.Load() {
				return
			}
			taskFunc()
		}
	})
}

func (th *TaskHandle) IsCancelled() bool {
	return th.cancel.Load()
}

func (th *TaskHandle) Cancel() {
	th.cancel.Store(true)
}

func (th *TaskHandle) Join() {
	th.taskCanceled.Wait()
}

func (th *TaskHandle) JoinWithTimeout(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		th.taskCanceled.Wait()
	}()
	select {
	case <-c:
		return false
	case <-time.After(timeout):
		return true
	}
}
