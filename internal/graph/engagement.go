package graph

import (
	"fmt"
	"strings"
	"time"

	"social-autopilot/internal/models"
)

// edgeSpec describes how one activity kind lands in the graph: the automated account points at a
// Video or an Account node through rel.
type edgeSpec struct {
	rel         string
	targetLabel string
	targetProp  string
	// actorCommented adds (actor)-[:COMMENTED_ON]->(video) for comment activity.
	actorCommented bool
}

var edgeSpecs = map[models.ActivityKind]edgeSpec{
	models.ActivityUpload:       {rel: "UPLOADED", targetLabel: "Video", targetProp: "key"},
	models.ActivityVideoLike:    {rel: "LIKED", targetLabel: "Video", targetProp: "key"},
	models.ActivityVideoComment: {rel: "COMMENTED_ON", targetLabel: "Video", targetProp: "key"},
	models.ActivityCommentReply: {rel: "REPLIED_TO", targetLabel: "Account", targetProp: "handle", actorCommented: true},
	models.ActivityCommentLike:  {rel: "LIKED_COMMENT_OF", targetLabel: "Account", targetProp: "handle", actorCommented: true},
	models.ActivityDMAccept:     {rel: "ACCEPTED", targetLabel: "Account", targetProp: "handle"},
	models.ActivityDMReply:      {rel: "MESSAGED", targetLabel: "Account", targetProp: "handle"},
	models.ActivityStoryView:    {rel: "VIEWED_STORIES", targetLabel: "Feed", targetProp: "url"},
}

// BuildActivityQuery returns the MERGE statement recording event for the automated account
// self. ok is false for events that carry nothing to write.
func BuildActivityQuery(self string, event models.ActivityEvent) (query string, params map[string]any, ok bool) {
	edge, known := edgeSpecs[event.Kind]
	if !known || strings.TrimSpace(event.Target) == "" {
		return "", nil, false
	}

	params = map[string]any{
		"self":     self,
		"event_id": event.ID,
		"at":       event.OccurredAt.UTC().Format(time.RFC3339),
		"text":     nullable(event.Text),
	}

	var b strings.Builder
	b.WriteString("MERGE (me:Autopilot {name: $self}) ")
	if edge.actorCommented {
		if strings.TrimSpace(event.Actor) == "" {
			return "", nil, false
		}
		params["video"] = event.Target
		params["target"] = event.Actor
		b.WriteString("MERGE (v:Video {key: $video}) ")
		fmt.Fprintf(&b, "MERGE (t:%s {%s: $target}) ", edge.targetLabel, edge.targetProp)
		b.WriteString("MERGE (t)-[:COMMENTED_ON]->(v) ")
	} else {
		params["target"] = event.Target
		fmt.Fprintf(&b, "MERGE (t:%s {%s: $target}) ", edge.targetLabel, edge.targetProp)
	}
	fmt.Fprintf(&b, "MERGE (me)-[r:%s {event_id: $event_id}]->(t) ", edge.rel)
	b.WriteString("SET r.at = $at, r.text = coalesce($text, r.text)")
	return b.String(), params, true
}

// RelationType returns the relationship written for kind, or "" when kind is not graphed.
func RelationType(kind models.ActivityKind) string {
	return edgeSpecs[kind].rel
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
