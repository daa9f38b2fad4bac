package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"social-autopilot/internal/apperrors"
	"social-autopilot/internal/browser"
	"social-autopilot/internal/metrics"
	"social-autopilot/internal/queue"
	"social-autopilot/internal/store"
	"social-autopilot/internal/tasks"
)

// ErrClosed is returned once Shutdown has begun.
var ErrClosed = errors.New("orchestrator closed")

// TaskRunner performs one automation pass.
type TaskRunner interface {
	Run(ctx context.Context, page browser.Page, batch tasks.Batch) error
}

// QueueReader exposes queue snapshots.
type QueueReader interface {
	Status() queue.Snapshot
}

// Controller is the surface the HTTP facade drives.
type Controller interface {
	Start(ctx context.Context)
	Running() bool
	BeginLogin(ctx context.Context) error
	CancelLogin() bool
	LoginState() LoginState
}

// Options wires an Orchestrator.
type Options struct {
	Queue    QueueReader
	Runner   TaskRunner
	Store    store.SessionStore
	Launcher browser.Launcher
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	PollInterval time.Duration
	PollJitter   time.Duration
	// SaveEvery persists the session every n ticks; 0 disables periodic saves.
	SaveEvery int
	Headless  bool

	BaseURL        string
	LandingPattern string
	VerifyTimeout  time.Duration
	// LoginTimeout bounds the manual login wait; 0 waits until cancelled.
	LoginTimeout time.Duration
}

// Orchestrator owns the browser session, the polling loop and the login flow.
type Orchestrator struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics

	running atomic.Bool
	ticks   atomic.Uint64

	life       context.Context
	cancelLife context.CancelFunc
	wg         sync.WaitGroup
	shutdown   sync.Once

	mu          sync.Mutex
	session     browser.Session
	closed      bool
	loginCancel context.CancelFunc
	loginState  LoginState
}

// New builds an idle orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	life, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		opts:       opts,
		logger:     logger.Named("orchestrator"),
		metrics:    opts.Metrics,
		life:       life,
		cancelLife: cancel,
		loginState: LoginNoSession,
	}
}

// Running reports whether the loop is active.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Ticks returns the number of completed loop iterations.
func (o *Orchestrator) Ticks() uint64 {
	return o.ticks.Load()
}

// Start spawns Run in the background unless the loop is already active.
// The loop stops when ctx ends or on Shutdown.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.running.Load() {
		return
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(o.life, cancel)
	go func() {
		defer o.wg.Done()
		defer cancel()
		defer stop()
		if err := o.Run(loopCtx); err != nil {
			o.logger.Error("loop did not start", zap.Error(err))
		}
	}()
}

// Run executes the polling loop until ctx ends. It returns nil at once if a loop is
// already active, and a StartupError when no browser session can be established.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return nil
	}
	o.metrics.Running(true)
	defer func() {
		o.running.Store(false)
		o.metrics.Running(false)
	}()

	sess, err := o.ensureSession(ctx)
	if err != nil {
		return err
	}

	o.logger.Info("loop started",
		zap.Duration("poll_interval", o.opts.PollInterval),
		zap.Duration("poll_jitter", o.opts.PollJitter),
	)
	for {
		if ctx.Err() != nil {
			o.logger.Info("loop stopped", zap.Uint64("ticks", o.ticks.Load()))
			return nil
		}
		o.tick(ctx, sess)
		if err := browser.Sleep(ctx, o.nextDelay()); err != nil {
			o.logger.Info("loop stopped", zap.Uint64("ticks", o.ticks.Load()))
			return nil
		}
	}
}

func (o *Orchestrator) ensureSession(ctx context.Context) (browser.Session, error) {
	o.mu.Lock()
	if o.session != nil {
		sess := o.session
		o.mu.Unlock()
		return sess, nil
	}
	inLogin := o.loginCancel != nil
	o.mu.Unlock()
	if inLogin {
		return nil, &apperrors.StartupError{Stage: "session", Err: apperrors.ErrLoginInProgress}
	}

	if !o.opts.Store.Exists(ctx) {
		o.logger.Warn("no session found, visit /login to sign in")
		return nil, &apperrors.StartupError{Stage: "session", Err: apperrors.ErrNoSession}
	}
	state, ok, err := o.opts.Store.Load(ctx)
	if err != nil {
		return nil, &apperrors.StartupError{Stage: "load session", Err: err}
	}
	if !ok {
		o.logger.Warn("stored session unusable, visit /login to sign in")
		return nil, &apperrors.StartupError{Stage: "load session", Err: apperrors.ErrNoSession}
	}

	sess, err := o.opts.Launcher.Launch(ctx, browser.LaunchOptions{
		State:    &state,
		Headless: o.opts.Headless,
	})
	if err != nil {
		var startup *apperrors.StartupError
		if errors.As(err, &startup) {
			return nil, err
		}
		return nil, &apperrors.StartupError{Stage: "launch", Err: err}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		_ = sess.Close()
		return nil, &apperrors.StartupError{Stage: "launch", Err: ErrClosed}
	}
	o.session = sess
	o.loginState = LoginSessionRestored
	return sess, nil
}

func (o *Orchestrator) tick(ctx context.Context, sess browser.Session) {
	snap := o.opts.Queue.Status()
	o.metrics.Queues(len(snap.Monitoring), len(snap.Uploading))

	var elapsed time.Duration
	ran := snap.Pending()
	if ran {
		start := time.Now()
		err := o.runBatch(ctx, sess.Page(), tasks.Batch{
			Uploads:  snap.Uploading,
			Monitors: snap.Monitoring,
		})
		elapsed = time.Since(start)
		if err != nil {
			o.logger.Error("tick failed", zap.Error(err))
		}
	}

	n := o.ticks.Add(1)
	o.metrics.Tick(ran, elapsed)
	if o.opts.SaveEvery > 0 && n%uint64(o.opts.SaveEvery) == 0 {
		_ = o.save(ctx, sess)
	}
}

// runBatch turns a panic inside the runner into an error so the loop survives it.
func (o *Orchestrator) runBatch(ctx context.Context, page browser.Page, batch tasks.Batch) (err error) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("tick panicked", zap.Any("panic", p), zap.Stack("stack"))
			err = fmt.Errorf("runner panic: %v", p)
		}
	}()
	return o.opts.Runner.Run(ctx, page, batch)
}

func (o *Orchestrator) nextDelay() time.Duration {
	d := o.opts.PollInterval
	if o.opts.PollJitter > 0 {
		d += time.Duration(rand.Int63n(int64(o.opts.PollJitter)))
	}
	return d
}

func (o *Orchestrator) save(ctx context.Context, sess browser.Session) error {
	state, err := sess.Capture(ctx)
	if err == nil {
		err = o.opts.Store.Save(ctx, state)
	}
	o.metrics.SessionSave(err)
	if err != nil {
		o.logger.Warn("session save failed", zap.Error(err))
	}
	return err
}

// Shutdown stops the loop and any pending login, persists the session and closes the
// browser. Save failures are logged. Later calls are no-ops.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var err error
	o.shutdown.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
		o.cancelLife()

		done := make(chan struct{})
		go func() {
			o.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			o.logger.Warn("shutdown: background work still running", zap.Error(ctx.Err()))
		}

		o.mu.Lock()
		sess := o.session
		o.session = nil
		o.mu.Unlock()
		if sess == nil {
			return
		}

		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if o.save(saveCtx, sess) == nil {
			o.logger.Info("session saved on shutdown")
		}
		if cerr := sess.Close(); cerr != nil {
			o.logger.Warn("browser close failed", zap.Error(cerr))
			err = cerr
		}
	})
	return err
}
