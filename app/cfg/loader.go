package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./imovelhub.db" description:"Path to the SQLite database file"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	Environment  string `long:"environment" env:"ENVIRONMENT" default:"development" description:"Runtime environment (development, production)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authenticated endpoints (optional outside production)"`
	PortalsDir   string `long:"portals-dir" env:"PORTALS_DIR" default:"./portals" description:"Directory containing portal template files"`

	// Ingestion configuration
	FetchTimeout int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-page fetch timeout in seconds"`
	BatchSize    int `long:"batch-size" env:"BATCH_SIZE" default:"50" description:"Maximum raw captures processed per pipeline run"`
	WriteDelayMs int `long:"write-delay" env:"WRITE_DELAY_MS" default:"250" description:"Delay between successive store writes in milliseconds"`

	// Scheduler configuration
	TriggerURL       string `long:"trigger-url" env:"TRIGGER_URL" description:"Crawler trigger endpoint URL (defaults to the local server)"`
	Schedule         string `long:"schedule" env:"SCHEDULE" default:"0 */6 * * *" description:"Cron schedule expression for pipeline runs"`
	Timezone         string `long:"timezone" env:"TZ" default:"America/Sao_Paulo" description:"Timezone for the scheduler and timestamps"`
	TriggerTimeout   int    `long:"trigger-timeout" env:"TRIGGER_TIMEOUT" default:"300" description:"Trigger call timeout in seconds"`
	RunOnStart       bool   `long:"run-on-start" env:"RUN_ON_START" description:"Trigger an immediate pipeline run on startup"`
	SchedulerEnabled bool   `long:"scheduler" env:"SCHEDULER_ENABLED" description:"Enable the periodic pipeline scheduler"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"ImovelHub/1.0" description:"User agent string for portal requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:           raw.DBPath,
		Port:             raw.Port,
		Environment:      raw.Environment,
		APIAccessKey:     raw.APIAccessKey,
		PortalsDir:       raw.PortalsDir,
		FetchTimeout:     raw.FetchTimeout,
		BatchSize:        raw.BatchSize,
		WriteDelayMs:     raw.WriteDelayMs,
		TriggerURL:       raw.TriggerURL,
		Schedule:         raw.Schedule,
		Timezone:         raw.Timezone,
		TriggerTimeout:   raw.TriggerTimeout,
		RunOnStart:       raw.RunOnStart,
		SchedulerEnabled: raw.SchedulerEnabled,
		UserAgent:        raw.UserAgent,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if cfg.TriggerURL == "" {
		cfg.TriggerURL = "http://localhost:" + cfg.Port + "/crawler"
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
