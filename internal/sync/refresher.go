package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/session"
)

// RefreshState represents the current state of the board refresher.
type RefreshState int

const (
	RefreshIdle RefreshState = iota
	RefreshRunning
	RefreshError
)

// RefreshStatus holds the refresher state for display in the status bar.
type RefreshStatus struct {
	ProjectID int
	State     RefreshState
	LastLoad  time.Time
	Error     error
}

// BoardLoadedMsg is a tea.Msg sent when a board reload completes. The
// receiver applies it only when ProjectID is still the open board, no
// mutation is in flight and none was issued after Since.
type BoardLoadedMsg struct {
	ProjectID int
	Tasks     []model.Task
	Error     error

	// Since is the stamp taken before the fetch started.
	Since uint64
}

// ReauthMsg is a tea.Msg sent when a reload was refused by the session
// guard.
type ReauthMsg struct{}

// fetchTimeout is the maximum time allowed for a single reload.
const fetchTimeout = 30 * time.Second

// defaultInterval applies when the configured interval is not positive.
const defaultInterval = 60 * time.Second

// TaskLister loads a project's tasks.
type TaskLister interface {
	ListTasks(ctx context.Context, projectID int) ([]model.Task, error)
}

// Refresher reloads the open board periodically and on demand. Results are
// delivered through WaitForNextResult; the board itself is only touched by
// the event loop.
type Refresher struct {
	lister    TaskLister
	interval  time.Duration
	log       *logrus.Logger
	status    RefreshStatus
	resultCh  chan tea.Msg
	triggerCh chan struct{}
	stopCh    chan struct{}
	stamp     func() uint64
	mu        gosync.Mutex
	running   bool
}

// NewRefresher creates a refresher for projectID. interval <= 0 selects the
// default.
func NewRefresher(lister TaskLister, projectID int, interval time.Duration, log *logrus.Logger) *Refresher {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Refresher{
		lister:    lister,
		interval:  interval,
		log:       log,
		status:    RefreshStatus{ProjectID: projectID},
		resultCh:  make(chan tea.Msg, 4),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a command that waits
// for its first result. Calling Start twice is a no-op.
func (r *Refresher) Start() tea.Cmd {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	go r.loop()

	return r.WaitForNextResult()
}

// Stop halts the polling goroutine. A stopped refresher cannot be
// restarted; create a new one for the next board.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	close(r.stopCh)
	r.running = false
}

// SetStamp installs the function whose value is recorded in each
// BoardLoadedMsg before its fetch starts, typically Coordinator.Issued. It
// must be called before Start.
func (r *Refresher) SetStamp(stamp func() uint64) {
	r.stamp = stamp
}

// Refresh triggers an immediate reload.
func (r *Refresher) Refresh() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
		// A reload is already queued.
	}
}

// Status returns the current refresher state.
func (r *Refresher) Status() RefreshStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Refresher) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.load()
		case <-r.triggerCh:
			r.load()
		}
	}
}

// load performs a single reload and queues the result.
func (r *Refresher) load() {
	r.mu.Lock()
	projectID := r.status.ProjectID
	r.status.State = RefreshRunning
	r.mu.Unlock()

	var since uint64
	if r.stamp != nil {
		since = r.stamp()
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	tasks, err := r.lister.ListTasks(ctx, projectID)

	r.mu.Lock()
	if err != nil {
		r.status.State = RefreshError
		r.status.Error = err
	} else {
		r.status.State = RefreshIdle
		r.status.Error = nil
		r.status.LastLoad = time.Now()
	}
	r.mu.Unlock()

	if errors.Is(err, session.ErrReauthenticate) {
		r.send(ReauthMsg{})
		return
	}
	if err != nil {
		r.log.WithError(err).WithField("project_id", projectID).Warn("board reload failed")
	}
	r.send(BoardLoadedMsg{ProjectID: projectID, Tasks: tasks, Error: err, Since: since})
}

// send queues msg without blocking; a full queue drops it.
func (r *Refresher) send(msg tea.Msg) {
	select {
	case r.resultCh <- msg:
	default:
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next reload
// result. Call it again after handling each result to keep listening. The
// command returns nil once the refresher is stopped.
func (r *Refresher) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-r.resultCh:
			return msg
		case <-r.stopCh:
			return nil
		}
	}
}
