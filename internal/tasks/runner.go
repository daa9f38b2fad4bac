package tasks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-autopilot/internal/apperrors"
	"social-autopilot/internal/browser"
	"social-autopilot/internal/kafka"
	"social-autopilot/internal/metrics"
	"social-autopilot/internal/models"
	"social-autopilot/internal/replier"
	"social-autopilot/internal/store"
)

// Batch is the queue snapshot handed to one pass.
type Batch struct {
	Uploads  []models.UploadItem
	Monitors []models.MonitorItem
}

// Options wires a Runner.
type Options struct {
	BaseURL     string
	ScrollTimes int
	Pacer       browser.Pacer
	Replier     replier.Replier
	Replied     store.RepliedStore
	Events      kafka.EventPublisher
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Runner performs one sequential automation pass over a page.
type Runner struct {
	baseURL     string
	scrollTimes int
	pacer       browser.Pacer
	replier     replier.Replier
	replied     store.RepliedStore
	events      kafka.EventPublisher
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

// NewRunner builds a Runner. Events defaults to a no-op publisher.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := opts.Events
	if events == nil {
		events = kafka.NopPublisher{}
	}
	return &Runner{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		scrollTimes: opts.ScrollTimes,
		pacer:       opts.Pacer,
		replier:     opts.Replier,
		replied:     opts.Replied,
		events:      events,
		metrics:     opts.Metrics,
		logger:      logger.Named("runner"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// ReplyID identifies a comment or message so it is answered once.
func ReplyID(target, author, text string) string {
	sum := sha256.Sum256([]byte(target + "\x00" + author + "\x00" + text))
	return hex.EncodeToString(sum[:16])
}

// Run uploads, answers comments on monitored videos, answers DMs and views stories.
// A failed action never stops the pass; all failures are returned joined.
func (r *Runner) Run(ctx context.Context, page browser.Page, batch Batch) error {
	var errs []error
	for _, item := range batch.Uploads {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := r.UploadVideo(ctx, page, item); err != nil {
			errs = append(errs, err)
		}
	}
	for _, item := range batch.Monitors {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		errs = append(errs, r.ReplyToComments(ctx, page, item.URL)...)
	}
	if err := ctx.Err(); err != nil {
		return errors.Join(append(errs, err)...)
	}
	errs = append(errs, r.ReplyToDMs(ctx, page)...)
	if err := ctx.Err(); err != nil {
		return errors.Join(append(errs, err)...)
	}
	errs = append(errs, r.ViewStories(ctx, page)...)
	return errors.Join(errs...)
}

// UploadVideo posts one video with its caption.
func (r *Runner) UploadVideo(ctx context.Context, page browser.Page, item models.UploadItem) error {
	step := func() error {
		if err := page.Navigate(ctx, r.baseURL+pathUpload); err != nil {
			return err
		}
		if err := r.pacer.Sleep(ctx); err != nil {
			return err
		}
		if err := page.SetFiles(ctx, selFileInput, item.Path); err != nil {
			return err
		}
		if err := page.Fill(ctx, selCaptionInput, item.Caption); err != nil {
			return err
		}
		if err := r.pacer.Sleep(ctx); err != nil {
			return err
		}
		return page.Click(ctx, selPostButton)
	}
	if err := step(); err != nil {
		return r.fail(ctx, string(models.ActivityUpload), item.Path, err)
	}
	r.logger.Info("uploaded video", zap.String("path", item.Path))
	r.done(ctx, models.ActivityUpload, item.Path, "", item.Caption)
	return nil
}

// ReplyToComments answers every unanswered comment on videoURL and likes it.
func (r *Runner) ReplyToComments(ctx context.Context, page browser.Page, videoURL string) []error {
	if err := page.Navigate(ctx, videoURL); err != nil {
		return []error{r.fail(ctx, "monitor", videoURL, err)}
	}
	if err := browser.HumanScroll(ctx, page, r.pacer, r.scrollTimes); err != nil {
		return []error{r.fail(ctx, "monitor", videoURL, err)}
	}
	comments, err := page.Elements(ctx, selCommentItem)
	if err != nil {
		return []error{r.fail(ctx, "monitor", videoURL, err)}
	}

	var errs []error
	for _, comment := range comments {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		if err := r.handleComment(ctx, page, videoURL, comment); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (r *Runner) handleComment(ctx context.Context, page browser.Page, videoURL string, comment browser.Element) error {
	username, err := comment.Text(ctx, selCommentUser)
	if err != nil {
		return r.fail(ctx, string(models.ActivityCommentReply), videoURL, err)
	}
	text, err := comment.Text(ctx, selCommentText)
	if err != nil {
		return r.fail(ctx, string(models.ActivityCommentReply), videoURL, err)
	}

	id := ReplyID(videoURL, username, text)
	if done, err := r.replied.HasReplied(ctx, id); err != nil {
		return r.fail(ctx, string(models.ActivityCommentReply), videoURL, err)
	} else if done {
		r.metrics.Action(string(models.ActivityCommentReply), "skipped")
		return nil
	}
	r.logger.Debug("comment", zap.String("video", videoURL), zap.String("user", username))

	reply, err := r.replier.Reply(ctx, text)
	if err != nil {
		return r.fail(ctx, string(models.ActivityCommentReply), videoURL, err)
	}

	hasReply, err := comment.Has(ctx, selCommentReply)
	if err != nil {
		return r.fail(ctx, string(models.ActivityCommentReply), videoURL, err)
	}
	if hasReply {
		post := func() error {
			if err := page.MoveMouse(ctx); err != nil {
				return err
			}
			if err := comment.Click(ctx, selCommentReply); err != nil {
				return err
			}
			if err := r.pacer.Sleep(ctx); err != nil {
				return err
			}
			if err := page.Fill(ctx, selCommentInput, reply); err != nil {
				return err
			}
			if err := r.pacer.Sleep(ctx); err != nil {
				return err
			}
			return page.Click(ctx, selCommentPost)
		}
		if err := post(); err != nil {
			return r.fail(ctx, string(models.ActivityCommentReply), videoURL, err)
		}
		if _, err := r.replied.MarkReplied(ctx, id); err != nil {
			r.logger.Warn("replied id not persisted", zap.String("id", id), zap.Error(err))
		}
		r.done(ctx, models.ActivityCommentReply, videoURL, username, reply)
	}

	hasLike, err := comment.Has(ctx, selLikeIcon)
	if err != nil {
		return r.fail(ctx, string(models.ActivityCommentLike), videoURL, err)
	}
	if hasLike {
		if err := page.MoveMouse(ctx); err != nil {
			return r.fail(ctx, string(models.ActivityCommentLike), videoURL, err)
		}
		if err := comment.Click(ctx, selLikeIcon); err != nil {
			return r.fail(ctx, string(models.ActivityCommentLike), videoURL, err)
		}
		r.done(ctx, models.ActivityCommentLike, videoURL, username, "")
	}
	return r.pacer.Sleep(ctx)
}

// ReplyToDMs accepts pending requests and answers the last message of each chat.
func (r *Runner) ReplyToDMs(ctx context.Context, page browser.Page) []error {
	inbox := r.baseURL + pathMessages
	if err := page.Navigate(ctx, inbox); err != nil {
		return []error{r.fail(ctx, string(models.ActivityDMReply), inbox, err)}
	}
	chats, err := page.Elements(ctx, selChatListItem)
	if err != nil {
		return []error{r.fail(ctx, string(models.ActivityDMReply), inbox, err)}
	}

	var errs []error
	for _, chat := range chats {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		if err := r.handleChat(ctx, page, chat); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (r *Runner) handleChat(ctx context.Context, page browser.Page, chat browser.Element) error {
	name, err := chat.Text(ctx, "")
	if err != nil {
		return r.fail(ctx, string(models.ActivityDMReply), "chat", err)
	}
	name = strings.TrimSpace(name)
	if err := chat.Click(ctx, ""); err != nil {
		return r.fail(ctx, string(models.ActivityDMReply), name, err)
	}

	pending, err := page.Has(ctx, selChatAccept)
	if err != nil {
		return r.fail(ctx, string(models.ActivityDMAccept), name, err)
	}
	if pending {
		if err := page.MoveMouse(ctx); err != nil {
			return r.fail(ctx, string(models.ActivityDMAccept), name, err)
		}
		if err := page.Click(ctx, selChatAccept); err != nil {
			return r.fail(ctx, string(models.ActivityDMAccept), name, err)
		}
		r.logger.Info("accepted message request", zap.String("chat", name))
		r.done(ctx, models.ActivityDMAccept, name, name, "")
	}

	messages, err := page.Elements(ctx, selChatMessage)
	if err != nil {
		return r.fail(ctx, string(models.ActivityDMReply), name, err)
	}
	if len(messages) == 0 {
		return nil
	}
	last, err := messages[len(messages)-1].Text(ctx, "")
	if err != nil {
		return r.fail(ctx, string(models.ActivityDMReply), name, err)
	}

	id := ReplyID("dm:"+name, name, last)
	if done, err := r.replied.HasReplied(ctx, id); err != nil {
		return r.fail(ctx, string(models.ActivityDMReply), name, err)
	} else if done {
		r.metrics.Action(string(models.ActivityDMReply), "skipped")
		return nil
	}

	reply, err := r.replier.Reply(ctx, last)
	if err != nil {
		return r.fail(ctx, string(models.ActivityDMReply), name, err)
	}
	send := func() error {
		if err := page.MoveMouse(ctx); err != nil {
			return err
		}
		if err := page.Fill(ctx, selChatInput, reply); err != nil {
			return err
		}
		if err := r.pacer.Sleep(ctx); err != nil {
			return err
		}
		return page.Click(ctx, selChatSend)
	}
	if err := send(); err != nil {
		return r.fail(ctx, string(models.ActivityDMReply), name, err)
	}
	if _, err := r.replied.MarkReplied(ctx, id); err != nil {
		r.logger.Warn("replied id not persisted", zap.String("id", id), zap.Error(err))
	}
	r.done(ctx, models.ActivityDMReply, name, name, reply)
	return r.pacer.Sleep(ctx)
}

// ViewStories opens each story in turn.
func (r *Runner) ViewStories(ctx context.Context, page browser.Page) []error {
	feed := r.baseURL + pathStories
	if err := page.Navigate(ctx, feed); err != nil {
		return []error{r.fail(ctx, string(models.ActivityStoryView), feed, err)}
	}
	stories, err := page.Elements(ctx, selStoryItem)
	if err != nil {
		return []error{r.fail(ctx, string(models.ActivityStoryView), feed, err)}
	}

	var errs []error
	for i, story := range stories {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		view := func() error {
			if err := page.MoveMouse(ctx); err != nil {
				return err
			}
			return story.Click(ctx, "")
		}
		if err := view(); err != nil {
			errs = append(errs, r.fail(ctx, string(models.ActivityStoryView), feed, err))
			continue
		}
		r.logger.Debug("viewed story", zap.Int("index", i))
		r.done(ctx, models.ActivityStoryView, feed, "", "")
		if err := r.pacer.Sleep(ctx); err != nil {
			return append(errs, err)
		}
	}
	return errs
}

// LikeVideo likes the video at url when the like control is present.
func (r *Runner) LikeVideo(ctx context.Context, page browser.Page, url string) error {
	step := func() (bool, error) {
		if err := page.Navigate(ctx, url); err != nil {
			return false, err
		}
		if err := r.pacer.Sleep(ctx); err != nil {
			return false, err
		}
		has, err := page.Has(ctx, selLikeIcon)
		if err != nil || !has {
			return false, err
		}
		if err := page.MoveMouse(ctx); err != nil {
			return false, err
		}
		return true, page.Click(ctx, selLikeIcon)
	}
	liked, err := step()
	if err != nil {
		return r.fail(ctx, string(models.ActivityVideoLike), url, err)
	}
	if liked {
		r.done(ctx, models.ActivityVideoLike, url, "", "")
	}
	return nil
}

// CommentVideo posts text as a top-level comment on the video at url.
func (r *Runner) CommentVideo(ctx context.Context, page browser.Page, url, text string) error {
	step := func() error {
		if err := page.Navigate(ctx, url); err != nil {
			return err
		}
		if err := r.pacer.Sleep(ctx); err != nil {
			return err
		}
		if err := page.MoveMouse(ctx); err != nil {
			return err
		}
		if err := page.Fill(ctx, selCommentInput, text); err != nil {
			return err
		}
		if err := r.pacer.Sleep(ctx); err != nil {
			return err
		}
		return page.Click(ctx, selCommentPost)
	}
	if err := step(); err != nil {
		return r.fail(ctx, string(models.ActivityVideoComment), url, err)
	}
	r.done(ctx, models.ActivityVideoComment, url, "", text)
	return nil
}

func (r *Runner) done(ctx context.Context, kind models.ActivityKind, target, actor, text string) {
	r.metrics.Action(string(kind), "success")
	event := models.ActivityEvent{
		ID:         r.newID(),
		Kind:       kind,
		Target:     target,
		Actor:      actor,
		Text:       text,
		OccurredAt: r.now().UTC(),
	}
	if err := r.events.PublishActivity(ctx, event); err != nil {
		r.logger.Warn("activity not published", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (r *Runner) fail(ctx context.Context, action, target string, err error) error {
	aerr := &apperrors.AutomationError{Action: action, Target: target, Err: err}
	r.metrics.Action(action, "failure")
	r.logger.Error("action failed",
		zap.String("action", action),
		zap.String("target", target),
		zap.Error(err),
	)
	failure := models.ActionFailure{
		ID:       r.newID(),
		Action:   action,
		Target:   target,
		Error:    err.Error(),
		FailedAt: r.now().UTC(),
	}
	if perr := r.events.PublishFailure(ctx, failure); perr != nil {
		r.logger.Warn("failure not published", zap.String("action", action), zap.Error(perr))
	}
	return aerr
}
