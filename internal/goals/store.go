package goals

import (
	"context"
	"errors"
	"sync"
	"time"

	"saveup/internal/core"
	"saveup/internal/log"
)

// Persister loads and saves the full goal set. persist.Synchronizer is the
// production implementation.
type Persister interface {
	Load(ctx context.Context) ([]core.Goal, error)
	Save(ctx context.Context, goals []core.Goal) (skipped bool, err error)
}

// Publisher receives committed changes. Failures are logged, never returned.
type Publisher interface {
	PublishGoalChange(ctx context.Context, change core.GoalChange) error
}

// View is the read model exposed to front ends.
type View struct {
	Goals          []core.Goal     `json:"goals"`
	TotalSaved     core.Money      `json:"totalSaved"`
	TotalTarget    core.Money      `json:"totalTarget"`
	CompletedGoals int             `json:"completedGoals"`
	Progress       float64         `json:"overallProgress"`
	Loading        bool            `json:"loading"`
	Error          string          `json:"error,omitempty"`
	ErrorKind      Kind            `json:"errorKind,omitempty"`
	Warning        string          `json:"warning,omitempty"`
	Aggregates     core.Aggregates `json:"-"`
}

// Store owns the goal set. Operations are serialized: each runs its
// transition, save and aggregate recomputation before the next starts.
type Store struct {
	mu        sync.Mutex
	state     State
	persister Persister
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
	newID     func() string

	loading bool
	errMsg  string
	errKind Kind
	warning string
}

// Option configures a Store.
type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger.WithComponent(log.ComponentGoals) }
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// NewStore creates a store in the loading state. A nil persister keeps the
// goals in memory only.
func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		state:     NewState([]core.Goal{}),
		persister: p,
		logger:    log.Discard(),
		now:       time.Now,
		newID:     NewID,
		loading:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted set. A corrupt or unreadable blob leaves the
// store empty, sets the error message and returns the load error; the
// store stays usable.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = true
	defer func() { s.loading = false }()

	if s.persister == nil {
		return nil
	}

	loaded, loadErr := s.persister.Load(ctx)
	next, _, err := Apply(s.state, LoadGoals{Goals: loaded}, s.env())
	if err != nil {
		return err
	}
	s.state = next

	if loadErr != nil {
		s.errMsg = MsgLoadFailed
		s.errKind = KindLoad
		s.logger.ErrorContext(ctx, "Failed to load saved goals",
			log.NewFields().WithOperation(log.OpLoad).WithError(loadErr).ToSlice()...)
		return loadErr
	}

	s.logger.InfoContext(ctx, "Goals loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldGoalCount, len(next.Goals))
	return nil
}

// CreateGoal validates input and appends a new locked goal.
func (s *Store) CreateGoal(ctx context.Context, in core.GoalInput) (core.Goal, error) {
	change, next, err := s.dispatch(ctx, log.OpCreate, CreateGoal{Input: in})
	if err != nil {
		return core.Goal{}, err
	}
	return goalIn(next, change.GoalID), nil
}

func (s *Store) UpdateGoal(ctx context.Context, id string, patch core.GoalPatch) (core.Goal, error) {
	_, next, err := s.dispatch(ctx, log.OpUpdate, UpdateGoal{ID: id, Patch: patch})
	if err != nil {
		return core.Goal{}, err
	}
	return goalIn(next, id), nil
}

// DeleteGoal removes a goal. Deleting an absent goal succeeds.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	_, _, err := s.dispatch(ctx, log.OpDelete, DeleteGoal{ID: id})
	return err
}

func (s *Store) AddDeposit(ctx context.Context, id string, amount core.Money, description string) (core.Goal, error) {
	_, next, err := s.dispatch(ctx, log.OpDeposit, AddDeposit{ID: id, Amount: amount, Description: description})
	if err != nil {
		return core.Goal{}, err
	}
	return goalIn(next, id), nil
}

func (s *Store) WithdrawFunds(ctx context.Context, id string, amount core.Money, description string) (core.Goal, error) {
	_, next, err := s.dispatch(ctx, log.OpWithdraw, WithdrawFunds{ID: id, Amount: amount, Description: description})
	if err != nil {
		return core.Goal{}, err
	}
	return goalIn(next, id), nil
}

func (s *Store) ToggleGoalLock(ctx context.Context, id string) (core.Goal, error) {
	_, next, err := s.dispatch(ctx, log.OpLock, ToggleGoalLock{ID: id})
	if err != nil {
		return core.Goal{}, err
	}
	return goalIn(next, id), nil
}

// ClearError resets the current error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
	s.errKind = KindNone
}

// Goal returns a copy of the goal with id.
func (s *Store) Goal(id string) (core.Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, i := s.state.Find(id)
	if i < 0 {
		return core.Goal{}, false
	}
	return g.Clone(), true
}

// Snapshot returns a deep copy of the current read model.
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	goals := make([]core.Goal, len(s.state.Goals))
	for i, g := range s.state.Goals {
		goals[i] = g.Clone()
	}
	agg := s.state.Aggregates
	return View{
		Goals:          goals,
		TotalSaved:     agg.TotalSaved,
		TotalTarget:    agg.TotalTarget,
		CompletedGoals: agg.CompletedGoals,
		Progress:       agg.OverallProgress(),
		Loading:        s.loading,
		Error:          s.errMsg,
		ErrorKind:      s.errKind,
		Warning:        s.warning,
		Aggregates:     agg,
	}
}

// Close performs the final flush of the goal set.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persister == nil {
		return nil
	}
	if _, err := s.persister.Save(ctx, s.state.Goals); err != nil {
		s.logger.ErrorContext(ctx, "Final flush failed",
			log.NewFields().WithOperation(log.OpShutdown).WithError(err).ToSlice()...)
		return err
	}
	return nil
}

func (s *Store) dispatch(ctx context.Context, op string, action Action) (Change, State, error) {
	s.mu.Lock()
	next, change, err := Apply(s.state, action, s.env())
	if err != nil {
		s.errMsg = err.Error()
		s.errKind = KindOf(err)
		s.mu.Unlock()

		var opErr *OpError
		fields := log.NewFields().WithOperation(op).WithError(err)
		if errors.As(err, &opErr) && opErr.GoalID != "" {
			fields = fields.WithGoal(opErr.GoalID, "")
		}
		s.logger.WarnContext(ctx, "Goal operation rejected", fields.ToSlice()...)
		return Change{}, State{}, err
	}

	s.state = next
	s.errMsg = ""
	s.errKind = KindNone
	if !change.IsZero() {
		s.save(ctx, op)
	}
	s.mu.Unlock()

	if !change.IsZero() {
		s.logger.InfoContext(ctx, "Goal operation committed",
			log.FieldOperation, op,
			log.FieldGoalID, change.GoalID,
			log.FieldMilestones, change.Milestones)
		s.publish(ctx, change)
	}
	return change, next, nil
}

// save writes the committed state. Failures become a warning; the
// in-memory state stays authoritative. Caller holds s.mu.
func (s *Store) save(ctx context.Context, op string) {
	if s.persister == nil {
		return
	}
	skipped, err := s.persister.Save(ctx, s.state.Goals)
	if err != nil {
		s.warning = "Changes could not be saved: " + err.Error()
		s.logger.WarnContext(ctx, "Failed to save goals",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		return
	}
	s.warning = ""
	if skipped {
		s.logger.DebugContext(ctx, "Save skipped for never populated empty set", log.FieldOperation, op)
	}
}

func (s *Store) publish(ctx context.Context, change Change) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishGoalChange(ctx, change); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish goal change",
			log.NewFields().WithOperation(log.OpPublish).WithGoal(change.GoalID, "").WithError(err).ToSlice()...)
	}
}

func goalIn(state State, id string) core.Goal {
	g, _ := state.Find(id)
	return g.Clone()
}

func (s *Store) env() Env {
	return Env{Now: s.now(), NewID: s.newID}
}
