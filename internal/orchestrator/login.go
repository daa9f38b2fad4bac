package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"social-autopilot/internal/apperrors"
	"social-autopilot/internal/browser"
)

// LoginState tracks the interactive login flow.
type LoginState string

const (
	LoginNoSession       LoginState = "no_session"
	LoginVerifying       LoginState = "verifying"
	LoginAwaitingManual  LoginState = "awaiting_manual_login"
	LoginSessionCaptured LoginState = "session_captured"
	LoginSessionRestored LoginState = "session_restored"
	LoginCancelled       LoginState = "cancelled"
	LoginFailed          LoginState = "failed"
)

// LoginState returns the current login flow state.
func (o *Orchestrator) LoginState() LoginState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loginState
}

// BeginLogin opens a visible browser for sign-in and returns at once. On success the
// session is saved, adopted and the loop started.
func (o *Orchestrator) BeginLogin(ctx context.Context) error {
	if o.running.Load() {
		return apperrors.ErrLoopRunning
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.loginCancel != nil {
		o.mu.Unlock()
		return apperrors.ErrLoginInProgress
	}
	loginCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(o.life, cancel)
	o.loginCancel = cancel
	o.loginState = LoginVerifying
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		defer cancel()
		defer stop()
		o.login(loginCtx)
	}()
	return nil
}

// CancelLogin aborts a pending login wait. It reports whether a flow was running.
func (o *Orchestrator) CancelLogin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loginCancel == nil {
		return false
	}
	o.loginCancel()
	return true
}

func (o *Orchestrator) login(ctx context.Context) {
	sess, restored := o.verifyStored(ctx)
	if sess == nil {
		if ctx.Err() != nil {
			o.finishLogin(LoginCancelled)
			return
		}
		var err error
		sess, err = o.awaitManualLogin(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				o.logger.Info("login cancelled")
				o.finishLogin(LoginCancelled)
				return
			}
			o.logger.Error("login failed", zap.Error(err))
			o.finishLogin(LoginFailed)
			return
		}
	}

	o.logger.Info("login detected, saving session")
	state, err := sess.Capture(ctx)
	if err != nil {
		o.logger.Error("session capture failed", zap.Error(err))
		_ = sess.Close()
		o.finishLogin(LoginFailed)
		return
	}
	err = o.opts.Store.Save(ctx, state)
	o.metrics.SessionSave(err)
	if err != nil {
		o.logger.Error("session save failed", zap.Error(err))
	}

	final := LoginSessionCaptured
	if restored {
		final = LoginSessionRestored
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		_ = sess.Close()
		o.finishLogin(LoginCancelled)
		return
	}
	old := o.session
	o.session = sess
	o.loginCancel = nil
	o.loginState = final
	o.mu.Unlock()
	if old != nil && old != sess {
		_ = old.Close()
	}

	o.logger.Info("session ready, starting loop", zap.String("state", string(final)))
	o.Start(o.life)
}

// verifyStored restores a persisted session and waits briefly for the signed-in landing
// page. It returns nil when there is nothing to restore or the session has expired.
func (o *Orchestrator) verifyStored(ctx context.Context) (browser.Session, bool) {
	if !o.opts.Store.Exists(ctx) {
		return nil, false
	}
	state, ok, err := o.opts.Store.Load(ctx)
	if err != nil || !ok {
		return nil, false
	}

	o.logger.Info("found existing session, attempting reuse")
	sess, err := o.opts.Launcher.Launch(ctx, browser.LaunchOptions{
		State:    &state,
		StartURL: o.opts.BaseURL,
	})
	if err != nil {
		o.logger.Warn("restored browser failed to start", zap.Error(err))
		return nil, false
	}

	vctx, cancel := context.WithTimeout(ctx, o.verifyTimeout())
	defer cancel()
	if err := sess.WaitForURL(vctx, o.opts.LandingPattern); err != nil {
		if ctx.Err() == nil {
			o.logger.Info("existing session expired, manual login required")
		}
		_ = sess.Close()
		return nil, false
	}
	o.logger.Info("already logged in, reusing existing session")
	return sess, true
}

func (o *Orchestrator) awaitManualLogin(ctx context.Context) (browser.Session, error) {
	sess, err := o.opts.Launcher.Launch(ctx, browser.LaunchOptions{
		StartURL: o.opts.BaseURL + "/login",
	})
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.loginState = LoginAwaitingManual
	o.mu.Unlock()
	o.logger.Info("login page opened, complete sign-in in the browser window")

	wctx := ctx
	if o.opts.LoginTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, o.opts.LoginTimeout)
		defer cancel()
	}
	if err := sess.WaitForURL(wctx, o.opts.LandingPattern); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}

func (o *Orchestrator) finishLogin(state LoginState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loginCancel = nil
	o.loginState = state
}

func (o *Orchestrator) verifyTimeout() time.Duration {
	if o.opts.VerifyTimeout > 0 {
		return o.opts.VerifyTimeout
	}
	return 15 * time.Second
}
