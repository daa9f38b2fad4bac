package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"social-autopilot/common"
	"social-autopilot/internal/config"
	"social-autopilot/internal/models"
)

var errEmptyBatch = errors.New("batch has no videos to monitor or post")

type cli struct {
	apiBase string
	timeout time.Duration
	client  *http.Client
}

// newRootCmd builds the command tree. A nil client gets a default one sized by --timeout.
func newRootCmd(client *http.Client) *cobra.Command {
	c := &cli{client: client}

	root := &cobra.Command{
		Use:           "autopilotctl",
		Short:         "Operate a running autopilot API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := url.ParseRequestURI(c.apiBase); err != nil {
				return fmt.Errorf("invalid --api %q: %w", c.apiBase, err)
			}
			if c.client == nil {
				c.client = &http.Client{Timeout: c.timeout}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.apiBase, "api", common.GetEnv("AUTOPILOT_API", "http://localhost:4000"), "API base URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "HTTP timeout per request")

	root.AddCommand(
		&cobra.Command{
			Use:   "enqueue <batch.yaml|batch.json>",
			Short: "Submit every video of a batch file concurrently",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.enqueue(cmd.OutOrStdout(), args[0])
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print both queues and whether the bot is running",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.status(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "login",
			Short: "Open the login page in the service browser",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.simple(cmd.OutOrStdout(), http.MethodGet, "/login")
			},
		},
		&cobra.Command{
			Use:   "cancel-login",
			Short: "Abort a pending login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.simple(cmd.OutOrStdout(), http.MethodDelete, "/login")
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Empty both queues",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.simple(cmd.OutOrStdout(), http.MethodDelete, "/queues")
			},
		},
	)
	return root
}

type submission struct {
	path string
	body any
	desc string
}

func (c *cli) enqueue(out io.Writer, path string) error {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return err
	}

	var subs []submission
	for _, u := range seed.VideosToMonitor {
		subs = append(subs, submission{path: "/monitor", body: map[string]string{"videoUrl": u}, desc: "monitor " + u})
	}
	for _, up := range seed.VideosToPost {
		subs = append(subs, submission{
			path: "/upload",
			body: map[string]string{"videoPath": up.File, "caption": up.Caption},
			desc: "upload " + up.File,
		})
	}
	if len(subs) == 0 {
		return errEmptyBatch
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for i, s := range subs {
		wg.Add(1)
		go func(idx int, s submission) {
			defer wg.Done()
			err := c.post(s.path, s.body)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Fprintf(out, "[%d] %s: %v\n", idx, s.desc, err)
				return
			}
			fmt.Fprintf(out, "[%d] %s: queued\n", idx, s.desc)
		}(i, s)
	}
	wg.Wait()

	fmt.Fprintf(out, "submitted %d of %d videos\n", len(subs)-failed, len(subs))
	if failed > 0 {
		return fmt.Errorf("%d submissions failed", failed)
	}
	return nil
}

func (c *cli) post(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.client.Post(c.endpoint(path), "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *cli) status(out io.Writer) error {
	resp, err := c.client.Get(c.endpoint("/status"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var status models.QueueStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	fmt.Fprintf(out, "running: %t\n", status.Running)
	fmt.Fprintf(out, "monitoring (%d):\n", len(status.Monitoring))
	for _, item := range status.Monitoring {
		fmt.Fprintf(out, "  %s\n", item.URL)
	}
	fmt.Fprintf(out, "uploading (%d):\n", len(status.Uploading))
	for _, item := range status.Uploading {
		if item.Caption == "" {
			fmt.Fprintf(out, "  %s\n", item.Path)
			continue
		}
		fmt.Fprintf(out, "  %s (%q)\n", item.Path, item.Caption)
	}
	return nil
}

func (c *cli) simple(out io.Writer, method, path string) error {
	req, err := http.NewRequest(method, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, strings.TrimSpace(string(body)))
	return nil
}

func (c *cli) endpoint(path string) string {
	return strings.TrimRight(c.apiBase, "/") + path
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := strings.TrimSpace(string(body))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	if msg == "" {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
}
