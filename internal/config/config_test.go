package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"POLL_INTERVAL", "POLL_JITTER", "SESSION_FILE", "KAFKA_BROKER", "LOGIN_TIMEOUT", "SITE_BASE_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, 30*time.Second, cfg.Loop.PollInterval)
	require.Equal(t, "storage/session.json", cfg.SessionFile)
	require.Equal(t, "autopilot.activity", cfg.KafkaActivityTopic)
	require.Equal(t, "autopilot.failures", cfg.KafkaFailureTopic)
	require.Equal(t, 15*time.Second, cfg.Login.VerifyTimeout)
	require.Zero(t, cfg.Login.Timeout)
	require.Equal(t, "https://www.tiktok.com", cfg.Browser.BaseURL)
	require.Empty(t, cfg.KafkaBroker)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("POLL_JITTER", "250ms")
	t.Setenv("BROWSER_HEADLESS", "yes")
	t.Setenv("SITE_BASE_URL", "http://127.0.0.1:9000/")
	t.Setenv("REPLIER_RPS", "2.5")

	cfg := Load()
	require.Equal(t, 5*time.Second, cfg.Loop.PollInterval)
	require.Equal(t, 250*time.Millisecond, cfg.Loop.PollJitter)
	require.True(t, cfg.Browser.Headless)
	require.Equal(t, "http://127.0.0.1:9000", cfg.Browser.BaseURL)
	require.Equal(t, 2.5, cfg.Replier.RPS)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Loop.PollInterval = 0
	cfg.Browser.DelayMin = 3 * time.Second
	cfg.Browser.DelayMax = time.Second

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "POLL_INTERVAL")
	require.Contains(t, err.Error(), "action delay bounds")
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	body := `videosToMonitor:
  - https://www.tiktok.com/@me/video/1
videosToPost:
  - file: /videos/a.mp4
    caption: first
  - file: /videos/b.mp4
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://www.tiktok.com/@me/video/1"}, seed.VideosToMonitor)

	uploads := seed.Uploads()
	require.Len(t, uploads, 2)
	require.Equal(t, "/videos/a.mp4", uploads[0].Path)
	require.Equal(t, "first", uploads[0].Caption)
	require.Equal(t, "", uploads[1].Caption)
}

func TestLoadSeedEmptyPath(t *testing.T) {
	seed, err := LoadSeed("")
	require.NoError(t, err)
	require.Empty(t, seed.VideosToMonitor)
}

func TestLoadSeedMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("videosToMonitor: [unterminated"), 0o600))

	_, err := LoadSeed(path)
	require.Error(t, err)
}
