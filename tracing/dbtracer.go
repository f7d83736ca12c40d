package tracing

import (
	"sync"

	"github.com/sarchlab/msisim/datarecording"
	"github.com/sarchlab/msisim/sim"
	"github.com/tebeka/atexit"
)

type taskTableEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime float64
	EndTime   float64
}

type stepTableEntry struct {
	TaskID string
	What   string
	Time   float64
}

// DBTracer is a tracer that stores finished tasks into a database through a
// DataRecorder.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller sim.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime sim.VTimeInSec

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer. The tasks that are still running when the
// program exits are written with the exit time as their end time.
func NewDBTracer(
	timeTeller sim.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable("trace", taskTableEntry{})
	dataRecorder.CreateTable("trace_steps", stepTableEntry{})

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange limits the tracer to the tasks that overlap with the given
// time range. A zero bound is ignored.
func (t *DBTracer) SetTimeRange(startTime, endTime sim.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task.StartTime = t.timeTeller.CurrentTime()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

// StepTask records a step of a task that is being traced.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tracingTasks[task.ID]; !ok {
		return
	}

	for _, step := range task.Steps {
		t.backend.InsertData("trace_steps", stepTableEntry{
			TaskID: task.ID,
			What:   step.What,
			Time:   float64(t.timeTeller.CurrentTime()),
		})
	}
}

// EndTask marks the end of a task.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	originalTask.EndTime = t.timeTeller.CurrentTime()
	if t.startTime > 0 && originalTask.EndTime < t.startTime {
		return
	}

	t.write(originalTask)
}

// Terminate writes the unfinished tasks and flushes the backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.timeTeller.CurrentTime()
	for _, task := range t.tracingTasks {
		task.EndTime = now
		t.write(task)
	}

	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}

func (t *DBTracer) write(task Task) {
	t.backend.InsertData("trace", taskTableEntry{
		ID:        task.ID,
		ParentID:  task.ParentID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Location,
		StartTime: float64(task.StartTime),
		EndTime:   float64(task.EndTime),
	})
}
