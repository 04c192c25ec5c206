package game

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type SessionPruner interface {
	Prune(ctx context.Context) (int, error)
}

type CachePruner interface {
	Prune() int
}

// Housekeeping is the set of periodic cleanups.
type Housekeeping struct {
	Sessions   SessionPruner
	Previews   CachePruner
	StaleAfter time.Duration
	Interval   time.Duration
}

// StartScheduler runs the housekeeping jobs every h.Interval until the
// returned scheduler is shut down.
func (s *Service) StartScheduler(h Housekeeping) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	interval := h.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	if h.Sessions != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(pruneSessions, h.Sessions, s.log),
			gocron.WithName("prune-sessions"),
		); err != nil {
			_ = sched.Shutdown()
			return nil, err
		}
	}

	if h.Previews != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				if removed := h.Previews.Prune(); removed > 0 {
					s.log.Debugw("pruned preview cache", "removed", removed)
				}
			}),
			gocron.WithName("prune-preview-cache"),
		); err != nil {
			_ = sched.Shutdown()
			return nil, err
		}
	}

	if h.StaleAfter > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				closed, err := s.CloseStale(ctx, h.StaleAfter)
				if err != nil {
					s.log.Errorw("closing stale games failed", "error", err)
					return
				}
				if closed > 0 {
					s.log.Infow("closed stale games", "count", closed)
				}
			}),
			gocron.WithName("close-stale-games"),
		); err != nil {
			_ = sched.Shutdown()
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}

func pruneSessions(sessions SessionPruner, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := sessions.Prune(ctx)
	if err != nil {
		log.Errorw("pruning sessions failed", "error", err)
		return
	}
	if removed > 0 {
		log.Debugw("pruned expired sessions", "removed", removed)
	}
}
