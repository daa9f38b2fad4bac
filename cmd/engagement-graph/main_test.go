package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"social-autopilot/internal/models"
	"social-autopilot/mocks"
)

func newTestWriter(t *testing.T) (*graphWriter, *mocks.MockSessionRunner) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	driver := mocks.NewMockDriverSessioner(ctrl)
	session := mocks.NewMockSessionRunner(ctrl)
	driver.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(session).AnyTimes()
	session.EXPECT().Close(gomock.Any()).Return(nil).AnyTimes()

	return &graphWriter{
		driver:        driver,
		self:          "me",
		logger:        zap.NewNop(),
		retryBase:     time.Millisecond,
		retryMaxDelay: 4 * time.Millisecond,
	}, session
}

func activityPayload(t *testing.T, event models.ActivityEvent) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return payload
}

func TestWriteActivity(t *testing.T) {
	writer, session := newTestWriter(t)
	called := false
	session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, work neo4j.ManagedTransactionWork, _ ...func(*neo4j.TransactionConfig)) (any, error) {
			called = true
			return nil, nil
		},
	)

	payload := activityPayload(t, models.ActivityEvent{
		ID:     "e1",
		Kind:   models.ActivityDMReply,
		Target: "bob",
		Text:   "hello",
	})
	if err := writer.writeActivity(context.Background(), payload); err != nil {
		t.Fatalf("write activity error: %v", err)
	}
	if !called {
		t.Fatal("expected execute write call")
	}
}

func TestWriteActivitySkipsUngraphable(t *testing.T) {
	writer, session := newTestWriter(t)
	session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	payload := activityPayload(t, models.ActivityEvent{Kind: models.ActivityVideoLike})
	if err := writer.writeActivity(context.Background(), payload); !errors.Is(err, errSkip) {
		t.Fatalf("expected errSkip, got %v", err)
	}
}

func TestConsumeActivityCommitsAfterWrite(t *testing.T) {
	writer, session := newTestWriter(t)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	reader := mocks.NewMockMessageReader(ctrl)
	m := newWriterMetrics(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	written := kafka.Message{Offset: 1, Value: activityPayload(t, models.ActivityEvent{
		ID: "e1", Kind: models.ActivityVideoLike, Target: "https://example.com/v/1",
	})}
	garbage := kafka.Message{Offset: 2, Value: []byte("{not json")}
	skipped := kafka.Message{Offset: 3, Value: activityPayload(t, models.ActivityEvent{Kind: models.ActivityStoryView})}
	flaky := kafka.Message{Offset: 4, Value: activityPayload(t, models.ActivityEvent{
		ID: "e4", Kind: models.ActivityUpload, Target: "/videos/a.mp4",
	})}

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(written, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(garbage, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(skipped, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(flaky, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
			cancel()
			return kafka.Message{}, context.Canceled
		}),
	)
	gomock.InOrder(
		session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil),
		session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("neo4j down")),
		session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("neo4j down")),
		session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil),
	)
	gomock.InOrder(
		reader.EXPECT().CommitMessages(gomock.Any(), written).Return(nil),
		reader.EXPECT().CommitMessages(gomock.Any(), garbage).Return(nil),
		reader.EXPECT().CommitMessages(gomock.Any(), skipped).Return(nil),
		reader.EXPECT().CommitMessages(gomock.Any(), flaky).Return(nil),
	)

	consumeActivity(ctx, reader, writer, m)

	if got := testutil.ToFloat64(m.received); got != 4 {
		t.Fatalf("expected 4 received, got %v", got)
	}
	if got := testutil.ToFloat64(m.written); got != 2 {
		t.Fatalf("expected 2 written, got %v", got)
	}
	if got := testutil.ToFloat64(m.skipped); got != 1 {
		t.Fatalf("expected 1 skipped, got %v", got)
	}
	if got := testutil.ToFloat64(m.failed); got != 3 {
		t.Fatalf("expected 3 failed, got %v", got)
	}
}

func TestConsumeActivityLeavesFailedWriteUncommittedOnShutdown(t *testing.T) {
	writer, session := newTestWriter(t)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	reader := mocks.NewMockMessageReader(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Offset: 7, Value: activityPayload(t, models.ActivityEvent{
		ID: "e7", Kind: models.ActivityDMReply, Target: "bob",
	})}
	reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil)
	reader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Times(0)

	var attempts int
	session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, neo4j.ManagedTransactionWork, ...func(*neo4j.TransactionConfig)) (any, error) {
			attempts++
			if attempts == 3 {
				cancel()
			}
			return nil, errors.New("neo4j down")
		}).MinTimes(3)

	consumeActivity(ctx, reader, writer, newWriterMetrics(prometheus.NewRegistry()))

	if attempts < 3 {
		t.Fatalf("expected at least 3 attempts, got %d", attempts)
	}
}

func TestConsumeActivityRetriesFetchErrors(t *testing.T) {
	writer, _ := newTestWriter(t)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	reader := mocks.NewMockMessageReader(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, errors.New("broker gone")),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
			cancel()
			return kafka.Message{}, context.Canceled
		}),
	)

	done := make(chan struct{})
	go func() {
		consumeActivity(ctx, reader, writer, newWriterMetrics(prometheus.NewRegistry()))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
