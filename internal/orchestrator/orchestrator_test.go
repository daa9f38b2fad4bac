package orchestrator_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"social-autopilot/internal/apperrors"
	"social-autopilot/internal/browser"
	"social-autopilot/internal/models"
	"social-autopilot/internal/orchestrator"
	"social-autopilot/internal/queue"
	"social-autopilot/internal/tasks"
	"social-autopilot/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	ctrl     *gomock.Controller
	queue    *queue.Queue
	runner   *mocks.MockTaskRunner
	store    *mocks.MockSessionStore
	launcher *mocks.MockLauncher
	session  *mocks.MockSession
}

func newHarness(t *testing.T) *harness {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return &harness{
		ctrl:     ctrl,
		queue:    queue.New(),
		runner:   mocks.NewMockTaskRunner(ctrl),
		store:    mocks.NewMockSessionStore(ctrl),
		launcher: mocks.NewMockLauncher(ctrl),
		session:  mocks.NewMockSession(ctrl),
	}
}

func (h *harness) orchestrator(saveEvery int) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		Queue:          h.queue,
		Runner:         h.runner,
		Store:          h.store,
		Launcher:       h.launcher,
		PollInterval:   time.Millisecond,
		PollJitter:     time.Millisecond,
		SaveEvery:      saveEvery,
		BaseURL:        "https://site.test",
		LandingPattern: "/foryou",
		VerifyTimeout:  50 * time.Millisecond,
	})
}

// expectRestore wires a stored session that launches successfully.
func (h *harness) expectRestore() {
	state := models.SessionState{Cookies: []models.Cookie{{Name: "sid", Value: "1"}}}
	h.store.EXPECT().Exists(gomock.Any()).Return(true).AnyTimes()
	h.store.EXPECT().Load(gomock.Any()).Return(state, true, nil).AnyTimes()
	h.launcher.EXPECT().Launch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts browser.LaunchOptions) (browser.Session, error) {
			if opts.State == nil || len(opts.State.Cookies) != 1 {
				return nil, errors.New("expected restored state")
			}
			return h.session, nil
		})
	h.session.EXPECT().Page().Return(nil).AnyTimes()
}

// expectShutdownSave wires the save and close done by Shutdown.
func (h *harness) expectShutdownSave() {
	h.session.EXPECT().Capture(gomock.Any()).Return(models.SessionState{}, nil).MinTimes(1)
	h.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).MinTimes(1)
	h.session.EXPECT().Close().Return(nil)
}

func TestRunWithoutSession(t *testing.T) {
	h := newHarness(t)
	h.store.EXPECT().Exists(gomock.Any()).Return(false)
	o := h.orchestrator(0)

	err := o.Run(context.Background())
	require.True(t, apperrors.IsStartup(err))
	require.ErrorIs(t, err, apperrors.ErrNoSession)
	require.False(t, o.Running())
	require.NoError(t, o.Shutdown(context.Background()))
}

func TestRunLaunchFailure(t *testing.T) {
	h := newHarness(t)
	h.store.EXPECT().Exists(gomock.Any()).Return(true)
	h.store.EXPECT().Load(gomock.Any()).Return(models.SessionState{}, true, nil)
	h.launcher.EXPECT().Launch(gomock.Any(), gomock.Any()).Return(nil, errors.New("chrome not found"))
	o := h.orchestrator(0)

	err := o.Run(context.Background())
	require.True(t, apperrors.IsStartup(err))
	require.False(t, o.Running())
	require.NoError(t, o.Shutdown(context.Background()))
}

func TestTickErrorKeepsLoopRunning(t *testing.T) {
	h := newHarness(t)
	h.expectRestore()
	h.expectShutdownSave()
	_, err := h.queue.EnqueueMonitor("https://site.test/v1")
	require.NoError(t, err)

	var calls atomic.Int32
	h.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ browser.Page, batch tasks.Batch) error {
			if len(batch.Monitors) != 1 || batch.Monitors[0].URL != "https://site.test/v1" {
				return errors.New("unexpected batch")
			}
			if calls.Add(1) == 1 {
				return &apperrors.AutomationError{Action: "monitor", Err: errors.New("selector timeout")}
			}
			return nil
		}).MinTimes(2)

	o := h.orchestrator(0)
	o.Start(context.Background())

	require.Eventually(t, func() bool { return o.Ticks() >= 3 }, 2*time.Second, time.Millisecond)
	require.True(t, o.Running())

	require.NoError(t, o.Shutdown(context.Background()))
	require.False(t, o.Running())
	require.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestRunnerPanicKeepsLoopRunning(t *testing.T) {
	h := newHarness(t)
	h.expectRestore()
	h.expectShutdownSave()
	_, err := h.queue.EnqueueUpload("/videos/a.mp4", "")
	require.NoError(t, err)

	var calls atomic.Int32
	h.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, browser.Page, tasks.Batch) error {
			if calls.Add(1) == 1 {
				var seen map[string]bool
				seen["boom"] = true
			}
			return nil
		}).MinTimes(2)

	o := h.orchestrator(0)
	o.Start(context.Background())

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, time.Millisecond)
	require.True(t, o.Running())
	require.GreaterOrEqual(t, o.Ticks(), uint64(1))

	require.NoError(t, o.Shutdown(context.Background()))
	require.False(t, o.Running())
}

func TestIdleQueueDoesNotInvokeRunner(t *testing.T) {
	h := newHarness(t)
	h.expectRestore()
	h.expectShutdownSave()

	o := h.orchestrator(0)
	o.Start(context.Background())
	require.Eventually(t, func() bool { return o.Ticks() >= 3 }, 2*time.Second, time.Millisecond)
	require.NoError(t, o.Shutdown(context.Background()))
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.expectRestore()
	h.expectShutdownSave()

	o := h.orchestrator(0)
	ctx := context.Background()
	o.Start(ctx)
	require.Eventually(t, o.Running, time.Second, time.Millisecond)
	o.Start(ctx)
	o.Start(ctx)
	require.NoError(t, o.Run(ctx))

	require.NoError(t, o.Shutdown(ctx))
}

func TestPeriodicSave(t *testing.T) {
	h := newHarness(t)
	h.expectRestore()

	var saves atomic.Int32
	h.session.EXPECT().Capture(gomock.Any()).Return(models.SessionState{}, nil).MinTimes(2)
	h.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, models.SessionState) error {
			saves.Add(1)
			return nil
		}).MinTimes(2)
	h.session.EXPECT().Close().Return(nil)

	o := h.orchestrator(2)
	o.Start(context.Background())
	require.Eventually(t, func() bool { return saves.Load() >= 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, o.Shutdown(context.Background()))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t)
	h.expectRestore()
	h.expectShutdownSave()

	o := h.orchestrator(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return o.Ticks() >= 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.False(t, o.Running())

	require.NoError(t, o.Shutdown(context.Background()))
	require.NoError(t, o.Shutdown(context.Background()))
}

func TestShutdownSaveFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.expectRestore()
	h.session.EXPECT().Capture(gomock.Any()).Return(models.SessionState{}, nil)
	h.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(&apperrors.IOError{Op: "save", Path: "x", Err: errors.New("read-only")})
	h.session.EXPECT().Close().Return(nil)

	o := h.orchestrator(0)
	o.Start(context.Background())
	require.Eventually(t, func() bool { return o.Ticks() >= 1 }, time.Second, time.Millisecond)
	require.NoError(t, o.Shutdown(context.Background()))
}
