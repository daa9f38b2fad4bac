package models

import "time"

// ActivityKind names an automated action.
type ActivityKind string

const (
	ActivityUpload       ActivityKind = "upload"
	ActivityCommentReply ActivityKind = "comment_reply"
	ActivityCommentLike  ActivityKind = "comment_like"
	ActivityVideoLike    ActivityKind = "video_like"
	ActivityVideoComment ActivityKind = "video_comment"
	ActivityDMAccept     ActivityKind = "dm_accept"
	ActivityDMReply      ActivityKind = "dm_reply"
	ActivityStoryView    ActivityKind = "story_view"
)

// ActivityEvent records one completed automated action. It is the payload of the activity topic.
type ActivityEvent struct {
	ID         string       `json:"id"`
	Kind       ActivityKind `json:"kind"`
	Target     string       `json:"target"`
	Actor      string       `json:"actor,omitempty"`
	Text       string       `json:"text,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}
