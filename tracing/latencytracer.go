package tracing

import (
	"sync"

	"github.com/sarchlab/msisim/sim"
)

// LatencyTracer measures how long the tasks accepted by the filter take. The
// time of overlapping tasks is added together.
type LatencyTracer struct {
	timeTeller sim.TimeTeller
	filter     TaskFilter

	lock          sync.Mutex
	inflightTasks map[string]Task
	count         uint64
	total         sim.VTimeInSec
	max           sim.VTimeInSec
}

// NewLatencyTracer creates a new LatencyTracer
func NewLatencyTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *LatencyTracer {
	return &LatencyTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]Task),
	}
}

// TotalCount returns the number of finished tasks.
func (t *LatencyTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count
}

// TotalTime returns the sum of the durations of the finished tasks.
func (t *LatencyTracer) TotalTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.total
}

// AverageTime returns the mean duration of the finished tasks.
func (t *LatencyTracer) AverageTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.count == 0 {
		return 0
	}

	return t.total / sim.VTimeInSec(t.count)
}

// MaxTime returns the longest duration of the finished tasks.
func (t *LatencyTracer) MaxTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.max
}

// StartTask records the task start time
func (t *LatencyTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	t.inflightTasks[task.ID] = task
	t.lock.Unlock()
}

// StepTask does nothing
func (t *LatencyTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task
func (t *LatencyTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	duration := now - originalTask.StartTime
	t.total += duration
	t.count++

	if duration > t.max {
		t.max = duration
	}

	delete(t.inflightTasks, task.ID)
}
