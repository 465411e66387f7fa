// Package scheduler drives the pipeline from the outside: a cron loop that
// periodically POSTs to the crawler trigger endpoint, exactly like an
// external clock would. It never invokes the pipeline in-process, so a
// stuck run cannot wedge the timer and the endpoint's auth path is always
// exercised.
package scheduler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vilaverde/imovelhub/app/cfg"
)

type Scheduler struct {
	cron       *cron.Cron
	httpClient *http.Client
	triggerURL string
	schedule   string
	accessKey  string
	userAgent  string
	runOnStart bool
}

func New() (*Scheduler, error) {
	c := cfg.Get()

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduler timezone: %w", err)
	}

	if _, err := url.ParseRequestURI(c.TriggerURL); err != nil {
		return nil, fmt.Errorf("invalid trigger URL %q: %w", c.TriggerURL, err)
	}

	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		httpClient: &http.Client{
			Timeout: time.Duration(c.TriggerTimeout) * time.Second,
		},
		triggerURL: c.TriggerURL,
		schedule:   c.Schedule,
		accessKey:  c.APIAccessKey,
		userAgent:  c.UserAgent,
		runOnStart: c.RunOnStart,
	}, nil
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.trigger); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	slog.Info("Scheduler started", "schedule", s.schedule, "trigger_url", s.triggerURL)

	if s.runOnStart {
		go s.RunNow()
	}

	return nil
}

// Stop halts scheduling and waits for an in-flight tick to finish or time
// out. No new tick fires after shutdown begins.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Scheduler stopped")
}

// RunNow triggers an immediate pipeline run outside the schedule.
func (s *Scheduler) RunNow() {
	slog.Info("Manual pipeline run requested")
	s.trigger()
}

// trigger performs one tick. Every failure class is logged and swallowed:
// a failed dispatch must never take the scheduler loop down.
func (s *Scheduler) trigger() {
	started := time.Now()

	req, err := http.NewRequest("POST", s.triggerURL, nil)
	if err != nil {
		slog.Error("Pipeline trigger failed", "class", "configuration", "error", err)
		return
	}
	req.Header.Set("User-Agent", s.userAgent)
	if s.accessKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		class := "no_response"
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			class = "timeout"
		}
		slog.Error("Pipeline trigger failed", "class", class, "error", err, "duration", time.Since(started))
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("Pipeline trigger rejected", "class", "remote_rejected",
			"status", resp.StatusCode, "body", string(body), "duration", time.Since(started))
		return
	}

	slog.Info("Pipeline trigger succeeded", "status", resp.StatusCode, "duration", time.Since(started))
}
