package soundbank

// Task kinds.
const (
	KindSync    = "sync"
	KindRefresh = "refresh"
)

// Task is a synchronize or refresh running in the background. Its result is
// applied to the bank by the Poll that picks it up; Done is closed after that.
// A task cannot be cancelled once started.
type Task struct {
	kind  string
	ready chan struct{} // background work finished
	done  chan struct{} // result applied

	commit func() outcome
	report Report
	err    error
}

// outcome is what a commit produced. message is shown and the bank files
// named in remove are deleted once the bank lock is released.
type outcome struct {
	report  Report
	err     error
	message string
	remove  []string
}

func newTask(kind string) *Task {
	return &Task{
		kind:  kind,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Kind returns KindSync or KindRefresh.
func (t *Task) Kind() string { return t.kind }

// Done is closed once the task's result has been applied by Poll.
func (t *Task) Done() <-chan struct{} { return t.done }

// Ready is closed once the background work has finished and the task is
// waiting for Poll.
func (t *Task) Ready() <-chan struct{} { return t.ready }

// Result returns the task's report. It is only meaningful after Done.
func (t *Task) Result() (Report, error) {
	select {
	case <-t.done:
		return t.report, t.err
	default:
		return Report{}, ErrBusy
	}
}
