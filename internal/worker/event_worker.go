package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"saveup/internal/amqp"
	"saveup/internal/cache"
	"saveup/internal/core"
	"saveup/internal/log"
)

// GoalReader loads the persisted goal set.
type GoalReader interface {
	Load(ctx context.Context) ([]core.Goal, error)
}

// Stats counts what the worker has processed.
type Stats struct {
	Processed  int64
	Milestones int64
	Failed     int64
}

// EventWorker turns goal events from AMQP into log records, resolving the
// goal behind milestone events so the record names it.
type EventWorker struct {
	reader GoalReader
	goals  *cache.LRUCache[core.Goal]
	logger *log.Logger

	processed  atomic.Int64
	milestones atomic.Int64
	failed     atomic.Int64
}

// NewEventWorker creates a worker. Goals read from storage are cached for
// ttl so bursts of events do not reload the whole set each time.
func NewEventWorker(reader GoalReader, ttl time.Duration, logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &EventWorker{
		reader: reader,
		goals:  cache.NewLRUCache[core.Goal](1000, ttl),
		logger: logger.WithComponent(log.ComponentEvents),
	}
}

// Cache exposes the goal cache so a cache.Manager can sweep it.
func (w *EventWorker) Cache() *cache.LRUCache[core.Goal] { return w.goals }

// HandleGoalEvent processes a single goal event. A storage error is
// returned so the event is requeued.
func (w *EventWorker) HandleGoalEvent(ctx context.Context, msg *amqp.GoalEventMessage) error {
	w.processed.Add(1)

	if msg.Kind == core.ChangeLoaded {
		w.logger.InfoContext(ctx, "Goal set loaded", "timestamp", msg.Timestamp)
		return nil
	}
	// The event means the cached copy is stale.
	w.goals.Delete(msg.GoalID)

	if len(msg.Milestones) == 0 {
		w.logger.InfoContext(ctx, "Goal event",
			log.FieldEventKind, string(msg.Kind),
			log.FieldGoalID, msg.GoalID,
			"timestamp", msg.Timestamp)
		return nil
	}

	g, found, err := w.goal(ctx, msg.GoalID)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("resolve goal %s: %w", msg.GoalID, err)
	}
	if !found {
		w.logger.DebugContext(ctx, "Milestone event for a goal that no longer exists",
			log.FieldGoalID, msg.GoalID)
		return nil
	}

	w.milestones.Add(int64(len(msg.Milestones)))
	w.logger.InfoContext(ctx, "Milestone reached",
		log.NewFields().
			WithGoal(g.ID, g.Title).
			WithAmount(g.CurrentAmount.Cents).
			ToSlice()...)
	for _, pct := range msg.Milestones {
		w.logger.InfoContext(ctx, fmt.Sprintf("%s reached %d%%", g.Title, pct),
			log.FieldGoalID, g.ID,
			log.FieldMilestones, pct,
			"progress", core.Progress(g))
	}
	return nil
}

// goal returns the stored goal, reloading the set on a cache miss.
func (w *EventWorker) goal(ctx context.Context, id string) (core.Goal, bool, error) {
	if g, ok := w.goals.Get(id); ok {
		return g, true, nil
	}
	list, err := w.reader.Load(ctx)
	if err != nil {
		return core.Goal{}, false, err
	}
	var (
		found core.Goal
		ok    bool
	)
	for _, g := range list {
		w.goals.Set(g.ID, g)
		if g.ID == id {
			found, ok = g, true
		}
	}
	return found, ok, nil
}

// GetStats returns the counters.
func (w *EventWorker) GetStats() Stats {
	return Stats{
		Processed:  w.processed.Load(),
		Milestones: w.milestones.Load(),
		Failed:     w.failed.Load(),
	}
}
