package interp

// TaskState mirrors the observable promise states a task's lifecycle drives.
type TaskState int

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskSuspended
	TaskDone
	TaskFailed
)

// Task is one cooperatively-scheduled unit of work spawned by `spawn expr`
// (spec §4.7). Each task runs in its own goroutine but the two unbuffered
// channels act as a baton: the scheduler only ever holds one task's "turn"
// at a time by sending on resume and blocking on yielded, so at most one
// goroutine is ever executing interpreter code (spec §5). This gives a task
// a real Go call stack to suspend mid-expression at an `await` — something
// a run-to-completion closure cannot do without full CPS transformation.
type Task struct {
	id      int
	state   TaskState
	promise *PromiseValue
	resume  chan struct{}
	yielded chan struct{}
}

// Scheduler is the single-threaded cooperative task queue (spec §4.7). It
// holds a FIFO ready queue, a set of suspended tasks, and tracks the
// currently executing task so the evaluator's yield checkpoints and
// `await` can find it.
type Scheduler struct {
	ready      []*Task
	suspended  map[int]*Task
	all        map[int]*Task
	current    *Task
	nextID     int
	opCounter  int
	yieldEvery int
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		suspended:  map[int]*Task{},
		all:        map[int]*Task{},
		yieldEvery: 50, // spec §4.7 "suggested period: ~50 operations"
	}
}

// Spawn starts fn on a new goroutine parked immediately behind its resume
// baton, enqueues its task, and returns a pending promise tied to it (spec
// §4.7 `spawn expr`).
func (s *Scheduler) Spawn(fn func() (Value, *Error)) *PromiseValue {
	s.nextID++
	p := NewPendingPromise()
	t := &Task{id: s.nextID, state: TaskReady, promise: p, resume: make(chan struct{}), yielded: make(chan struct{})}
	p.TaskID = t.id
	s.all[t.id] = t
	s.ready = append(s.ready, t)

	go func() {
		<-t.resume
		val, err := fn()
		if err != nil {
			t.state = TaskFailed
			t.promise.Reject(err.Message)
		} else {
			t.state = TaskDone
			t.promise.Resolve(val)
		}
		t.yielded <- struct{}{}
	}()

	return p
}

// runOneIteration hands the baton to the task at the head of the ready
// queue and waits for it to suspend (via Yield/Await) or finish. The task
// itself is responsible for re-queuing in s.ready or s.suspended before it
// signals yielded, so the scheduler never inspects task internals here.
func (s *Scheduler) runOneIteration() {
	if len(s.ready) == 0 {
		return
	}
	t := s.ready[0]
	s.ready = s.ready[1:]
	prev := s.current
	s.current = t
	t.state = TaskRunning
	t.resume <- struct{}{}
	<-t.yielded
	s.current = prev
}

// RunUntilPromiseResolved drains the ready queue until promise settles or
// there is no more runnable work.
func (s *Scheduler) RunUntilPromiseResolved(promise *PromiseValue) {
	for promise.State == Pending && len(s.ready) > 0 {
		s.runOneIteration()
	}
}

func (s *Scheduler) RunUntilComplete() {
	for len(s.ready) > 0 {
		s.runOneIteration()
	}
}

// Checkpoint is consulted by the evaluator at yield checkpoints (loop
// iteration entry, function/method/lambda call entry, spec §4.7). A
// checkpoint fires every yieldEvery operations while a task is active,
// handing the baton back to the scheduler so another ready task gets a
// turn before this one resumes. Outside any task (top-level script
// execution) it is a no-op: s.current is nil.
func (s *Scheduler) Checkpoint() {
	t := s.current
	if t == nil {
		return
	}
	s.opCounter++
	if s.opCounter < s.yieldEvery {
		return
	}
	s.opCounter = 0
	s.ready = append(s.ready, t)
	t.state = TaskReady
	t.yielded <- struct{}{}
	<-t.resume
	t.state = TaskRunning
}

// Await implements `await promise` (spec §4.7). If the promise has already
// settled it returns immediately. Otherwise, inside a task, it registers a
// resume callback and hands the baton back to the scheduler, blocking this
// task's goroutine (not the scheduler) until the promise settles and the
// scheduler gives it another turn. Outside any task, `await` at top level
// drains the ready queue synchronously since there is no task to suspend.
func (s *Scheduler) Await(p *PromiseValue, span Span) (Value, *Error) {
	if p.State == Fulfilled {
		return p.Value, nil
	}
	if p.State == Rejected {
		return nil, newErr(ValueError, span, "%s", p.ErrMsg)
	}

	t := s.current
	if t == nil {
		for p.State == Pending && len(s.ready) > 0 {
			s.runOneIteration()
		}
		switch p.State {
		case Fulfilled:
			return p.Value, nil
		case Rejected:
			return nil, newErr(ValueError, span, "%s", p.ErrMsg)
		default:
			return nil, newErr(InternalError, span, "await: no runnable task can ever resolve this promise")
		}
	}

	p.Callbacks = append(p.Callbacks, func(PromiseValue) {
		delete(s.suspended, t.id)
		t.state = TaskReady
		s.ready = append(s.ready, t)
	})
	t.state = TaskSuspended
	s.suspended[t.id] = t
	t.yielded <- struct{}{}
	<-t.resume
	t.state = TaskRunning

	if p.State == Rejected {
		return nil, newErr(ValueError, span, "%s", p.ErrMsg)
	}
	return p.Value, nil
}

func (s *Scheduler) CurrentTask() *Task { return s.current }

// CreateResolvedPromise / CreateRejectedPromise are scheduler-level promise
// utilities that build an already-settled promise. The evaluator does not
// call them; Await reads a settled promise's state directly.
func CreateResolvedPromise(v Value) *PromiseValue {
	p := NewPendingPromise()
	p.Resolve(v)
	return p
}

func CreateRejectedPromise(msg string) *PromiseValue {
	p := NewPendingPromise()
	p.Reject(msg)
	return p
}

// PromiseAll resolves to the list of resolved values in input order when
// every input is fulfilled, or rejects with the first rejection (spec
// §4.7). The scheduler itself stays strictly single-threaded (spec §5: "no
// lock is required because there is at most one task executing interpreter
// code at a time") — the ready queue is drained on the calling goroutine
// until every constituent promise has settled, then results are collected
// in input order on that same goroutine.
func (s *Scheduler) PromiseAll(promises []*PromiseValue) *PromiseValue {
	result := NewPendingPromise()

	for !allSettled(promises) && len(s.ready) > 0 {
		s.runOneIteration()
	}

	values := make([]Value, len(promises))
	for i, p := range promises {
		if p.State == Rejected {
			result.Reject(p.ErrMsg)
			return result
		}
		values[i] = p.Value
	}
	result.Resolve(NewList(values))
	return result
}

func allSettled(promises []*PromiseValue) bool {
	for _, p := range promises {
		if p.State == Pending {
			return false
		}
	}
	return true
}
