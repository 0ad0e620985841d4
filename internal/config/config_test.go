package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDevDefaults(t *testing.T) {
	cfg, err := Load("tablegate-api", mapLookup(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q", cfg.Profile)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Backend.Kind != "sqlite" || cfg.Backend.DSN != "file:tablegate.db?mode=ro" {
		t.Fatalf("Backend = %+v", cfg.Backend)
	}
	if cfg.Gate.TableName != "wastedata" || cfg.Gate.RowCap != 100 {
		t.Fatalf("Gate = %+v", cfg.Gate)
	}
	if cfg.AI.Model != "gpt-5" || cfg.AI.Timeout != 15*time.Second {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.Archive.Enabled {
		t.Fatal("archive enabled by default")
	}
	if cfg.Observability.LogLevel != slog.LevelDebug || !cfg.Observability.LogJSON {
		t.Fatalf("Observability = %+v", cfg.Observability)
	}
}

func TestLoadProfileDefaults(t *testing.T) {
	test, err := Load("tablegate-api", mapLookup(map[string]string{"TABLEGATE_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load(test) error = %v", err)
	}
	if test.HTTP.Address != ":18080" || test.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("test profile = %+v", test)
	}

	prod, err := Load("tablegate-api", mapLookup(map[string]string{"TABLEGATE_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load(prod) error = %v", err)
	}
	if prod.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("prod log level = %v", prod.Observability.LogLevel)
	}
	if !prod.Archive.UseSSL || prod.Archive.AutoCreateBucket {
		t.Fatalf("prod archive = %+v", prod.Archive)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load("tablegate-api", mapLookup(map[string]string{
		"TABLEGATE_HTTP_ADDR":            ":9999",
		"TABLEGATE_BACKEND_KIND":         "postgres",
		"TABLEGATE_BACKEND_DSN":          "postgres://ro@localhost/waste",
		"TABLEGATE_BACKEND_QUERY_TIMEOUT": "3s",
		"TABLEGATE_GATE_TABLE":           "dbo.WasteData",
		"TABLEGATE_GATE_ROW_CAP":         "50",
		"TABLEGATE_AI_TEMPERATURE":       "0.7",
		"TABLEGATE_ARCHIVE_ENABLED":      "true",
		"TABLEGATE_LOG_LEVEL":            "error",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Backend.Kind != "postgres" || cfg.Backend.QueryTimeout != 3*time.Second {
		t.Fatalf("Backend = %+v", cfg.Backend)
	}
	if cfg.Gate.TableName != "dbo.WasteData" || cfg.Gate.RowCap != 50 {
		t.Fatalf("Gate = %+v", cfg.Gate)
	}
	if cfg.AI.Temperature != 0.7 {
		t.Fatalf("AI.Temperature = %v", cfg.AI.Temperature)
	}
	if !cfg.Archive.Enabled {
		t.Fatal("archive not enabled")
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{"bad profile", map[string]string{"TABLEGATE_PROFILE": "staging"}, "TABLEGATE_PROFILE"},
		{"bad duration", map[string]string{"TABLEGATE_BACKEND_QUERY_TIMEOUT": "soon"}, "TABLEGATE_BACKEND_QUERY_TIMEOUT"},
		{"bad int", map[string]string{"TABLEGATE_GATE_ROW_CAP": "many"}, "TABLEGATE_GATE_ROW_CAP"},
		{"bad bool", map[string]string{"TABLEGATE_ARCHIVE_ENABLED": "yep"}, "TABLEGATE_ARCHIVE_ENABLED"},
		{"bad float", map[string]string{"TABLEGATE_AI_TEMPERATURE": "warm"}, "TABLEGATE_AI_TEMPERATURE"},
		{"bad log level", map[string]string{"TABLEGATE_LOG_LEVEL": "loud"}, "TABLEGATE_LOG_LEVEL"},
		{"zero row cap", map[string]string{"TABLEGATE_GATE_ROW_CAP": "0"}, "row cap"},
		{"blank addr", map[string]string{"TABLEGATE_HTTP_ADDR": "  "}, "http address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load("tablegate-api", mapLookup(tc.values))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoadRequiresLookup(t *testing.T) {
	if _, err := Load("tablegate-api", nil); err == nil {
		t.Fatal("expected error for nil lookup")
	}
}
