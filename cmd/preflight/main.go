package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"social-autopilot/common"
	"social-autopilot/internal/config"
	"social-autopilot/internal/graph"
	"social-autopilot/internal/store"
)

const checkTimeout = 5 * time.Second

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func main() {
	cfg := config.Load()
	checks := buildChecks(cfg, common.ParseBool(os.Getenv("PREFLIGHT_NEO4J"), false))
	if err := runChecks(context.Background(), os.Stdout, checks); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildChecks(cfg config.Config, withNeo4j bool) []check {
	checks := []check{
		{name: "config", run: func(context.Context) (string, error) {
			if err := cfg.Validate(); err != nil {
				return "", err
			}
			return "valid", nil
		}},
		{name: "session", run: func(ctx context.Context) (string, error) {
			return checkSession(ctx, store.NewFileSessionStore(cfg.SessionFile, nil))
		}},
		{name: "seed", run: func(context.Context) (string, error) {
			if cfg.SeedFile == "" {
				return "none configured", nil
			}
			seed, err := config.LoadSeed(cfg.SeedFile)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d to monitor, %d to post", len(seed.VideosToMonitor), len(seed.VideosToPost)), nil
		}},
	}
	if cfg.RedisAddr != "" {
		checks = append(checks, check{name: "redis", run: func(ctx context.Context) (string, error) {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer client.Close()
			if err := client.Ping(ctx).Err(); err != nil {
				return "", fmt.Errorf("ping %s: %w", cfg.RedisAddr, err)
			}
			return "reachable at " + cfg.RedisAddr, nil
		}})
	}
	if cfg.KafkaBroker != "" {
		checks = append(checks, check{name: "kafka", run: func(ctx context.Context) (string, error) {
			return checkKafka(ctx, cfg.KafkaBroker)
		}})
	}
	if withNeo4j {
		checks = append(checks, check{name: "neo4j", run: func(ctx context.Context) (string, error) {
			driver, err := graph.NewDriver(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
			if err != nil {
				return "", err
			}
			defer driver.Close(context.Background())
			if err := driver.VerifyConnectivity(ctx); err != nil {
				return "", err
			}
			return "reachable at " + cfg.Neo4jURI, nil
		}})
	}
	return checks
}

// runChecks runs every check and reports each outcome. It fails if any check failed.
func runChecks(ctx context.Context, out io.Writer, checks []check) error {
	var errs []error
	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		detail, err := c.run(checkCtx)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "FAIL %-8s %v\n", c.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		fmt.Fprintf(out, "ok   %-8s %s\n", c.name, detail)
	}
	return errors.Join(errs...)
}

// checkSession reports whether a usable session is stored. A missing session is not a failure:
// the service starts idle and waits for GET /login.
func checkSession(ctx context.Context, sessions *store.FileSessionStore) (string, error) {
	state, ok, err := sessions.Load(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "none stored at " + sessions.Path() + ", login required", nil
	}
	return fmt.Sprintf("%d cookies, %d origins", len(state.Cookies), len(state.Origins)), nil
}

func checkKafka(ctx context.Context, broker string) (string, error) {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", broker, err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return "", fmt.Errorf("read metadata: %w", err)
	}
	return fmt.Sprintf("connected to %s (%d partitions)", broker, len(partitions)), nil
}
