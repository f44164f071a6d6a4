// Package sync keeps the board consistent with the remote service: the
// coordinator applies mutations optimistically and settles them when the
// persistence call returns, and the refresher reloads the board wholesale.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/teamboard/internal/board"
	"github.com/nhle/teamboard/internal/gateway"
	"github.com/nhle/teamboard/internal/model"
)

// ErrProvisional is returned when a mutation targets a task whose creation
// has not been confirmed yet.
var ErrProvisional = errors.New("task is still being created")

// Phase is the lifecycle state of one mutation.
type Phase int

const (
	Idle Phase = iota
	OptimisticallyApplied
	Committed
	RolledBack
	// Superseded completions belong to a call that a newer call for the same
	// task replaced; they are ignored.
	Superseded
	// Moot completions arrived after the session was abandoned.
	Moot
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case OptimisticallyApplied:
		return "optimistically-applied"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled-back"
	case Superseded:
		return "superseded"
	case Moot:
		return "moot"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Op names the kind of mutation.
type Op int

const (
	OpMove Op = iota
	OpCreate
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpMove:
		return "move"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Remote is the persistence surface the coordinator calls.
type Remote interface {
	UpdateTask(ctx context.Context, t model.Task) (*model.Task, gateway.Outcome)
	CreateTask(ctx context.Context, in model.TaskInput) (*model.Task, gateway.Outcome)
	DeleteTask(ctx context.Context, id int) gateway.Outcome
}

// SettledMsg is delivered to the event loop when a persistence call
// returns. Pass it to Coordinator.Settle.
type SettledMsg struct {
	Op      Op
	TaskID  int
	Seq     uint64
	Epoch   uint64
	Task    *model.Task
	Outcome gateway.Outcome

	id uint64
}

// Settlement reports what Settle did with a completion.
type Settlement struct {
	Op     Op
	TaskID int
	Phase  Phase

	// Notice is the message to show the user, empty when there is none.
	Notice string

	// Refresh asks the caller to reload the board from the remote.
	Refresh bool
}

// pending is the bookkeeping of one in-flight mutation.
type pending struct {
	id     uint64
	op     Op
	taskID int
	seq    uint64

	// rollbacks is the coordinator's rollback count when p was issued. The
	// snapshot only describes the board while no mutation it contains has
	// been rolled back since.
	rollbacks uint64

	// snapshot is the whole board before the optimistic apply.
	snapshot board.Partitions

	// before, beforeStatus and beforeIndex locate the task as it was, for
	// a targeted revert when later mutations must survive.
	before       model.Task
	beforeStatus model.Status
	beforeIndex  int
}

// Coordinator owns every optimistic mutation of one board. It must only be
// used from the event loop; the commands it returns run the network calls
// elsewhere and report back through SettledMsg.
type Coordinator struct {
	board   *board.Board
	remote  Remote
	log     *logrus.Logger
	timeout time.Duration

	epoch     uint64
	issued    atomic.Uint64
	rollbacks uint64
	seqs     map[int]uint64
	inflight map[uint64]*pending
	nextTemp int
}

// NewCoordinator returns a coordinator mutating b. timeout bounds each
// persistence call; zero leaves it to the transport.
func NewCoordinator(b *board.Board, remote Remote, timeout time.Duration, log *logrus.Logger) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{
		board:    b,
		remote:   remote,
		log:      log,
		timeout:  timeout,
		seqs:     make(map[int]uint64),
		inflight: make(map[uint64]*pending),
		nextTemp: -1,
	}
}

// Board returns the board the coordinator mutates.
func (c *Coordinator) Board() *board.Board { return c.board }

// Pending returns the number of mutations awaiting completion.
func (c *Coordinator) Pending() int { return len(c.inflight) }

// Busy reports whether any mutation is in flight.
func (c *Coordinator) Busy() bool { return len(c.inflight) > 0 }

// Issued returns how many mutations have been issued. It is safe to call
// from any goroutine; a reload stamped with an older value may predate a
// mutation and must not replace the board.
func (c *Coordinator) Issued() uint64 { return c.issued.Load() }

// Epoch returns the current session generation.
func (c *Coordinator) Epoch() uint64 { return c.epoch }

// Abandon makes every pending completion moot. Call it on logout,
// reauthentication and project navigation.
func (c *Coordinator) Abandon() {
	c.epoch++
	c.inflight = make(map[uint64]*pending)
	c.seqs = make(map[int]uint64)
	c.log.WithField("epoch", c.epoch).Debug("board session abandoned")
}

// Reset abandons pending work and points the coordinator at a new board.
func (c *Coordinator) Reset(b *board.Board) {
	c.Abandon()
	c.board = b
}

// Move applies m to the board and returns the command that persists it.
// A no-op move returns a nil command and leaves the board untouched.
func (c *Coordinator) Move(m board.Move) (tea.Cmd, error) {
	if m.TaskID < 0 {
		return nil, ErrProvisional
	}
	before, status, index, ok := c.board.Find(m.TaskID)
	if !ok || status != m.From {
		return nil, fmt.Errorf("%w: task %d in %s", board.ErrUnknownTask, m.TaskID, m.From)
	}

	res, err := board.ComputeMove(c.board.Partitions(), m)
	if err != nil {
		return nil, err
	}
	if !res.Changed {
		return nil, nil
	}

	p := c.begin(OpMove, m.TaskID, before, status, index)
	c.board.Apply(res.Partitions)

	moved := res.Task
	return c.dispatch(p, func(ctx context.Context) (*model.Task, gateway.Outcome) {
		return c.remote.UpdateTask(ctx, moved)
	}), nil
}

// Create appends a provisional task built from in to the tail of its column
// and returns the command that creates it remotely. The provisional task
// carries a negative id until the remote record replaces it.
func (c *Coordinator) Create(in model.TaskInput, assignee *model.Assignee) (tea.Cmd, int, error) {
	in = in.Normalize()
	if in.ProjectID == 0 {
		in.ProjectID = c.board.ProjectID()
	}
	if err := in.Validate(); err != nil {
		return nil, 0, err
	}

	tempID := c.nextTemp
	c.nextTemp--

	p := c.begin(OpCreate, tempID, model.Task{}, "", -1)
	c.board.Append(model.Task{
		ID:          tempID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Deadline:    in.Deadline,
		Assignee:    assignee,
		ProjectID:   in.ProjectID,
		Tags:        in.Tags,
	})

	return c.dispatch(p, func(ctx context.Context) (*model.Task, gateway.Outcome) {
		return c.remote.CreateTask(ctx, in)
	}), tempID, nil
}

// Update replaces the editable fields of a task in place. A status change
// moves the task to the tail of its new column.
func (c *Coordinator) Update(t model.Task) (tea.Cmd, error) {
	if t.ID < 0 {
		return nil, ErrProvisional
	}
	before, status, index, ok := c.board.Find(t.ID)
	if !ok {
		return nil, fmt.Errorf("%w: task %d", board.ErrUnknownTask, t.ID)
	}
	t.Status = model.EditableStatus(t.Status)
	if !t.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", board.ErrUnknownColumn, t.Status)
	}
	t.ProjectID = before.ProjectID

	var moved *board.Result
	if t.Status != status {
		res, err := board.ComputeMove(c.board.Partitions(), board.Move{
			TaskID:    t.ID,
			From:      status,
			To:        t.Status,
			FromIndex: index,
			ToIndex:   len(c.board.Partitions()[t.Status]),
		})
		if err != nil {
			return nil, err
		}
		moved = &res
	}

	p := c.begin(OpUpdate, t.ID, before, status, index)
	if moved == nil {
		t.Position = before.Position
	} else {
		c.board.Apply(moved.Partitions)
		t.Position = moved.Task.Position
	}
	c.board.Replace(t.ID, t)

	updated := t
	return c.dispatch(p, func(ctx context.Context) (*model.Task, gateway.Outcome) {
		return c.remote.UpdateTask(ctx, updated)
	}), nil
}

// Delete removes a task from the board and returns the command that deletes
// it remotely. Remaining positions are not renumbered.
func (c *Coordinator) Delete(id int) (tea.Cmd, error) {
	if id < 0 {
		return nil, ErrProvisional
	}
	before, status, index, ok := c.board.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: task %d", board.ErrUnknownTask, id)
	}

	p := c.begin(OpDelete, id, before, status, index)
	c.board.Remove(id)

	return c.dispatch(p, func(ctx context.Context) (*model.Task, gateway.Outcome) {
		return nil, c.remote.DeleteTask(ctx, id)
	}), nil
}

func (c *Coordinator) begin(op Op, taskID int, before model.Task, status model.Status, index int) *pending {
	c.seqs[taskID]++
	p := &pending{
		id:           c.issued.Add(1),
		op:           op,
		taskID:       taskID,
		seq:          c.seqs[taskID],
		rollbacks:    c.rollbacks,
		snapshot:     c.board.Snapshot(),
		before:       before,
		beforeStatus: status,
		beforeIndex:  index,
	}
	c.inflight[p.id] = p
	c.log.WithFields(logrus.Fields{
		"op":      op.String(),
		"task_id": taskID,
		"seq":     p.seq,
	}).Debug("mutation applied optimistically")
	return p
}

func (c *Coordinator) dispatch(
	p *pending,
	call func(ctx context.Context) (*model.Task, gateway.Outcome),
) tea.Cmd {
	msg := SettledMsg{
		Op:     p.op,
		TaskID: p.taskID,
		Seq:    p.seq,
		Epoch:  c.epoch,
		id:     p.id,
	}
	timeout := c.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		msg.Task, msg.Outcome = call(ctx)
		return msg
	}
}

// Settle resolves a completion against the current board. It must run on
// the event loop.
func (c *Coordinator) Settle(msg SettledMsg) Settlement {
	s := Settlement{Op: msg.Op, TaskID: msg.TaskID}
	entry := c.log.WithFields(logrus.Fields{
		"op":      msg.Op.String(),
		"task_id": msg.TaskID,
		"seq":     msg.Seq,
		"outcome": msg.Outcome.Kind.String(),
	})

	if msg.Epoch != c.epoch {
		s.Phase = Moot
		entry.Debug("completion after session abandoned")
		return s
	}

	p, ok := c.inflight[msg.id]
	if !ok {
		s.Phase = Moot
		return s
	}
	delete(c.inflight, msg.id)

	if latest := c.seqs[msg.TaskID]; msg.Seq < latest {
		s.Phase = Superseded
		entry.WithField("latest_seq", latest).Debug("stale completion ignored")
		return s
	}

	if msg.Outcome.OK() {
		s.Phase = Committed
		s.Refresh = c.commit(p, msg)
		entry.Debug("mutation committed")
		return s
	}

	s.Phase = RolledBack
	if p.id == c.issued.Load() && p.rollbacks == c.rollbacks {
		c.board.Restore(p.snapshot)
	} else {
		c.revert(p)
		s.Refresh = true
	}
	c.rollbacks++
	if msg.Outcome.Kind != gateway.Unauthenticated {
		s.Notice = msg.Outcome.Notice("")
	}
	entry.WithError(msg.Outcome.Err()).Warn("mutation rolled back")
	return s
}

// commit folds the remote record into the board. Positions and statuses
// stay as applied locally so siblings never reorder. It reports whether a
// refresh is needed to learn server-assigned fields.
func (c *Coordinator) commit(p *pending, msg SettledMsg) bool {
	switch p.op {
	case OpCreate:
		if msg.Task == nil {
			return true
		}
		local, _, _, ok := c.board.Find(p.taskID)
		if !ok {
			return true
		}
		record := *msg.Task
		record.Status = local.Status
		record.Position = local.Position
		if record.ProjectID == 0 {
			record.ProjectID = local.ProjectID
		}
		if record.Assignee == nil {
			record.Assignee = local.Assignee
		}
		c.board.Replace(p.taskID, record)
		return false
	case OpMove, OpUpdate:
		if msg.Task == nil {
			return false
		}
		local, _, _, ok := c.board.Find(p.taskID)
		if !ok {
			return false
		}
		c.board.Replace(p.taskID, mergeFields(local, *msg.Task))
	}
	return false
}

// mergeFields copies the non-positional fields of remote onto local.
func mergeFields(local, remote model.Task) model.Task {
	local.Title = remote.Title
	local.Description = remote.Description
	local.Deadline = remote.Deadline
	local.Tags = remote.Tags
	if remote.Assignee != nil {
		local.Assignee = remote.Assignee
	}
	return local
}

// revert undoes only p, leaving the optimistic state of later mutations in
// place.
func (c *Coordinator) revert(p *pending) {
	switch p.op {
	case OpCreate:
		c.board.Remove(p.taskID)
	case OpDelete:
		if _, _, _, ok := c.board.Find(p.taskID); !ok {
			c.board.Insert(p.before, p.beforeIndex)
		}
	case OpMove, OpUpdate:
		_, status, index, ok := c.board.Find(p.taskID)
		if !ok {
			return
		}
		if status != p.beforeStatus || index != p.beforeIndex {
			res, err := board.ComputeMove(c.board.Partitions(), board.Move{
				TaskID:    p.taskID,
				From:      status,
				To:        p.beforeStatus,
				FromIndex: index,
				ToIndex:   p.beforeIndex,
			})
			if err != nil {
				c.log.WithError(err).WithField("task_id", p.taskID).Error("reverting move")
				return
			}
			c.board.Apply(res.Partitions)
		}
		current, _, _, _ := c.board.Find(p.taskID)
		restored := p.before
		restored.Position = current.Position
		c.board.Replace(p.taskID, restored)
	}
}
