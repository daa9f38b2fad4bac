package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"social-autopilot/common"
	"social-autopilot/internal/config"
	"social-autopilot/internal/graph"
	"social-autopilot/internal/logging"
	"social-autopilot/internal/models"
	"social-autopilot/internal/stream"
)

const fetchRetryDelay = 500 * time.Millisecond

type writerMetrics struct {
	received prometheus.Counter
	written  prometheus.Counter
	skipped  prometheus.Counter
	failed   prometheus.Counter
}

func newWriterMetrics(reg prometheus.Registerer) *writerMetrics {
	f := promauto.With(reg)
	return &writerMetrics{
		received: f.NewCounter(prometheus.CounterOpts{
			Namespace: "engagement_graph", Name: "events_received_total",
			Help: "Activity events fetched from Kafka.",
		}),
		written: f.NewCounter(prometheus.CounterOpts{
			Namespace: "engagement_graph", Name: "events_written_total",
			Help: "Activity events merged into Neo4j.",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "engagement_graph", Name: "events_skipped_total",
			Help: "Activity events with nothing to graph.",
		}),
		failed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "engagement_graph", Name: "events_failed_total",
			Help: "Undecodable activity events plus failed write attempts.",
		}),
	}
}

// errSkip marks events that decode fine but carry nothing to write.
var errSkip = errors.New("nothing to write")

type graphWriter struct {
	driver        graph.DriverSessioner
	self          string
	logger        *zap.Logger
	retryBase     time.Duration
	retryMaxDelay time.Duration
}

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("invalid logging config: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	group := common.GetEnv("KAFKA_ACTIVITY_GROUP", "autopilot-engagement-graph")
	self := common.GetEnv("AUTOPILOT_ACCOUNT", "me")
	metricsAddr := common.GetEnv("METRICS_ADDR", ":9091")
	if cfg.KafkaBroker == "" {
		logger.Fatal("KAFKA_BROKER is required")
	}

	driver, err := graph.NewDriver(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		logger.Fatal("neo4j driver error", zap.Error(err))
	}
	defer func() {
		if err := driver.Close(context.Background()); err != nil {
			logger.Warn("neo4j close error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = driver.VerifyConnectivity(verifyCtx)
	cancel()
	if err != nil {
		logger.Fatal("neo4j unreachable", zap.String("uri", cfg.Neo4jURI), zap.Error(err))
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.KafkaBroker},
		Topic:   cfg.KafkaActivityTopic,
		GroupID: group,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("activity reader close error", zap.Error(err))
		}
	}()

	m := newWriterMetrics(prometheus.DefaultRegisterer)
	if metricsAddr != "" {
		startMetricsServer(ctx, metricsAddr, logger)
	}

	writer := &graphWriter{
		driver:        driver,
		self:          self,
		logger:        logger.Named("engagement_graph"),
		retryBase:     common.ParseDuration(os.Getenv("RETRY_BASE_DELAY"), 200*time.Millisecond),
		retryMaxDelay: common.ParseDuration(os.Getenv("RETRY_MAX_DELAY"), 30*time.Second),
	}
	logger.Info("consuming activity",
		zap.String("topic", cfg.KafkaActivityTopic),
		zap.String("group", group),
		zap.String("account", self),
	)
	consumeActivity(ctx, reader, writer, m)
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

// consumeActivity writes each event and commits its offset once the write succeeded or the
// event was found to be unwritable. Offsets commit in order, so a failing write is retried in
// place instead of being skipped. It returns when ctx ends.
func consumeActivity(ctx context.Context, reader stream.MessageReader, writer *graphWriter, m *writerMetrics) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			writer.logger.Warn("activity fetch error", zap.Error(err))
			if !sleepCtx(ctx, fetchRetryDelay) {
				return
			}
			continue
		}

		m.received.Inc()
		err = writer.writeWithRetry(ctx, msg, m)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, errSkip):
			m.skipped.Inc()
		case err != nil:
			m.failed.Inc()
			writer.logger.Warn("dropping undecodable activity", zap.Int64("offset", msg.Offset), zap.Error(err))
		default:
			m.written.Inc()
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			writer.logger.Warn("activity commit error", zap.Error(err))
		}
	}
}

// writeWithRetry retries neo4j failures with capped exponential backoff until the write lands or
// ctx ends. Decode errors and errSkip return at once.
func (w *graphWriter) writeWithRetry(ctx context.Context, msg kafka.Message, m *writerMetrics) error {
	delay := w.retryBase
	for attempt := 1; ; attempt++ {
		err := w.writeActivity(ctx, msg.Value)
		if err == nil || errors.Is(err, errSkip) || isDecodeError(err) {
			return err
		}
		m.failed.Inc()
		w.logger.Error("activity write error",
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
		delay *= 2
		if w.retryMaxDelay > 0 && delay > w.retryMaxDelay {
			delay = w.retryMaxDelay
		}
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *graphWriter) writeActivity(ctx context.Context, payload []byte) error {
	var event models.ActivityEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	query, params, ok := graph.BuildActivityQuery(w.self, event)
	if !ok {
		return errSkip
	}
	return w.runWrite(ctx, query, params)
}

func (w *graphWriter) runWrite(ctx context.Context, query string, params map[string]any) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(ctx); err != nil {
			w.logger.Warn("neo4j session close error", zap.Error(err))
		}
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}
