package tasks

// Page selectors of the target site.
const (
	selFileInput     = `input[type="file"]`
	selCaptionInput  = `[placeholder="Add a caption"]`
	selPostButton    = `[data-e2e="post-button"]`
	selLikeIcon      = `[data-e2e="like-icon"]`
	selCommentItem   = `[data-e2e="comment-item"]`
	selCommentUser   = `[data-e2e="comment-username"]`
	selCommentText   = `[data-e2e="comment-text"]`
	selCommentReply  = `[data-e2e="comment-reply"]`
	selCommentInput  = `[data-e2e="comment-input"]`
	selCommentPost   = `[data-e2e="comment-post"]`
	selChatListItem  = `[data-e2e="chat-list-item"]`
	selChatAccept    = `[data-e2e="chat-accept"]`
	selChatMessage   = `[data-e2e="chat-message"]`
	selChatInput     = `[data-e2e="chat-input"]`
	selChatSend      = `[data-e2e="chat-send"]`
	selStoryItem     = `[data-e2e="story-item"]`
)

// Paths relative to the site base URL.
const (
	pathUpload   = "/upload"
	pathMessages = "/messages"
	pathStories  = "/stories"
)
