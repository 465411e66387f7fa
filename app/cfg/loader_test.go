package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestIsProduction(t *testing.T) {
	cfg := &Cfg{Environment: "development"}
	if cfg.IsProduction() {
		t.Error("development environment should not report production mode")
	}

	cfg.Environment = "production"
	if !cfg.IsProduction() {
		t.Error("production environment should report production mode")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		DBPath:           "./test.db",
		Port:             "8080",
		Environment:      "production",
		APIAccessKey:     "test-key",
		PortalsDir:       "./portals",
		FetchTimeout:     30,
		BatchSize:        50,
		WriteDelayMs:     250,
		TriggerURL:       "http://localhost:8080/crawler",
		Schedule:         "0 */6 * * *",
		Timezone:         "America/Sao_Paulo",
		TriggerTimeout:   300,
		RunOnStart:       true,
		SchedulerEnabled: true,
		UserAgent:        "Test Agent",
		Version:          "test-version",
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.Schedule != "0 */6 * * *" {
		t.Errorf("Expected schedule '0 */6 * * *', got '%s'", cfg.Schedule)
	}
	if cfg.Timezone != "America/Sao_Paulo" {
		t.Errorf("Expected timezone 'America/Sao_Paulo', got '%s'", cfg.Timezone)
	}
	if cfg.TriggerTimeout != 300 {
		t.Errorf("Expected trigger timeout 300, got %d", cfg.TriggerTimeout)
	}
	if !cfg.RunOnStart {
		t.Error("Expected run-on-start to be true")
	}
	if cfg.UserAgent != "Test Agent" {
		t.Errorf("Expected user agent 'Test Agent', got '%s'", cfg.UserAgent)
	}
}
