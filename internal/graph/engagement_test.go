package graph

import (
	"strings"
	"testing"
	"time"

	"social-autopilot/internal/models"
)

func TestBuildActivityQueryVideo(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	query, params, ok := BuildActivityQuery("me", models.ActivityEvent{
		ID:         "e1",
		Kind:       models.ActivityVideoLike,
		Target:     "https://example.com/@a/video/1",
		OccurredAt: at,
	})
	if !ok {
		t.Fatal("expected query")
	}
	if !strings.Contains(query, "MERGE (t:Video {key: $target})") || !strings.Contains(query, "[r:LIKED {event_id: $event_id}]") {
		t.Fatalf("unexpected query: %s", query)
	}
	if params["target"] != "https://example.com/@a/video/1" || params["self"] != "me" || params["at"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected params: %+v", params)
	}
	if params["text"] != nil {
		t.Fatalf("expected nil text, got %v", params["text"])
	}
}

func TestBuildActivityQueryCommentReply(t *testing.T) {
	query, params, ok := BuildActivityQuery("me", models.ActivityEvent{
		ID:     "e2",
		Kind:   models.ActivityCommentReply,
		Target: "https://example.com/@me/video/9",
		Actor:  "alice",
		Text:   "thanks!",
	})
	if !ok {
		t.Fatal("expected query")
	}
	for _, want := range []string{
		"MERGE (v:Video {key: $video})",
		"MERGE (t:Account {handle: $target})",
		"MERGE (t)-[:COMMENTED_ON]->(v)",
		"MERGE (me)-[r:REPLIED_TO {event_id: $event_id}]->(t)",
		"coalesce($text, r.text)",
	} {
		if !strings.Contains(query, want) {
			t.Fatalf("query missing %q: %s", want, query)
		}
	}
	if params["video"] != "https://example.com/@me/video/9" || params["target"] != "alice" || params["text"] != "thanks!" {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestBuildActivityQueryDM(t *testing.T) {
	query, params, ok := BuildActivityQuery("me", models.ActivityEvent{Kind: models.ActivityDMReply, Target: "bob", Actor: "bob", Text: "hi"})
	if !ok {
		t.Fatal("expected query")
	}
	if !strings.Contains(query, "[r:MESSAGED") || params["target"] != "bob" {
		t.Fatalf("unexpected query/params: %s %+v", query, params)
	}
}

func TestBuildActivityQuerySkips(t *testing.T) {
	cases := []models.ActivityEvent{
		{Kind: models.ActivityVideoLike},
		{Kind: "unknown", Target: "x"},
		{Kind: models.ActivityCommentLike, Target: "https://example.com/v"},
	}
	for _, event := range cases {
		if _, _, ok := BuildActivityQuery("me", event); ok {
			t.Fatalf("expected skip for %+v", event)
		}
	}
}

func TestRelationType(t *testing.T) {
	if got := RelationType(models.ActivityStoryView); got != "VIEWED_STORIES" {
		t.Fatalf("unexpected relation: %s", got)
	}
	if got := RelationType("nope"); got != "" {
		t.Fatalf("unexpected relation: %s", got)
	}
}
