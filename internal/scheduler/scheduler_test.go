package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/reconcile"
)

type fakeReconciler struct {
	mu    sync.Mutex
	dates []string
	fail  map[string]error
}

func (f *fakeReconciler) ReconcileDate(_ context.Context, date time.Time) (*reconcile.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := models.DateKey(date)
	f.dates = append(f.dates, key)
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return reconcile.NewReport(date), nil
}

func newTestScheduler(t *testing.T, r DateReconciler, cfg Config) *Scheduler {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	return NewScheduler(r, cfg, log)
}

func melbourne(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Melbourne")
	require.NoError(t, err)
	return loc
}

func TestRecentDatesUseConfiguredTimezone(t *testing.T) {
	s := newTestScheduler(t, &fakeReconciler{}, Config{Location: melbourne(t)})
	// 14:00 UTC on the 18th is 01:00 on the 19th in Melbourne (AEDT).
	s.now = func() time.Time { return time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC) }

	dates := s.RecentDates()
	require.Len(t, dates, 2)
	assert.Equal(t, "2025-11-18", models.DateKey(dates[0]))
	assert.Equal(t, "2025-11-19", models.DateKey(dates[1]))
}

func TestRunRecentReconcilesBothDays(t *testing.T) {
	fake := &fakeReconciler{fail: map[string]error{"2025-11-17": errors.New("db down")}}
	var reconciled []string
	s := newTestScheduler(t, fake, Config{
		OnReconciled: func(date time.Time, _ *reconcile.Report) {
			reconciled = append(reconciled, models.DateKey(date))
		},
	})
	s.now = func() time.Time { return time.Date(2025, 11, 18, 9, 0, 0, 0, time.UTC) }

	err := s.RunRecent(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2025-11-17")
	assert.Equal(t, []string{"2025-11-17", "2025-11-18"}, fake.dates)
	assert.Equal(t, []string{"2025-11-18"}, reconciled)
}

func TestScheduleReconcileRecent(t *testing.T) {
	s := newTestScheduler(t, &fakeReconciler{}, Config{})

	assert.Error(t, s.Start(), "no jobs scheduled")
	assert.Error(t, s.ScheduleReconcileRecent("not a cron spec"))

	require.NoError(t, s.ScheduleReconcileRecent("*/30 * * * *"))
	assert.Error(t, s.ScheduleReconcileRecent("*/30 * * * *"), "job already scheduled")

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())
	assert.Error(t, s.ScheduleReconcileRecent("@hourly"))

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.True(t, s.GetNextRun().IsZero())
}
