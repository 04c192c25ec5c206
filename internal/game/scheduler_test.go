package game

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPruner struct {
	sessions atomic.Int32
	previews atomic.Int32
}

func (p *countingPruner) Prune(context.Context) (int, error) {
	p.sessions.Add(1)
	return 0, nil
}

type cachePrunerFunc func() int

func (f cachePrunerFunc) Prune() int { return f() }

func TestSchedulerRunsHousekeeping(t *testing.T) {
	f := newFixture(t, 3, 0)
	ctx := context.Background()

	game, err := f.svc.Start(ctx, f.cat, Player{ID: "u"}, "pl")
	require.NoError(t, err)
	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	pruner := &countingPruner{}
	sched, err := f.svc.StartScheduler(Housekeeping{
		Sessions:   pruner,
		Previews:   cachePrunerFunc(func() int { pruner.previews.Add(1); return 0 }),
		StaleAfter: time.Minute,
		Interval:   20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer func() { _ = sched.Shutdown() }()

	assert.Eventually(t, func() bool {
		loaded, err := f.repo.GetSession(ctx, game.ID)
		return err == nil && !loaded.IsActive &&
			pruner.sessions.Load() > 0 && pruner.previews.Load() > 0
	}, 2*time.Second, 20*time.Millisecond)
}
