package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Root:         "/var/spool/stageship",
				StreamName:   "logs",
				PollInterval: "5m",
				MaxRows:      500,
				RemoveOnSend: &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Root:         "/var/spool/stageship",
				StreamName:   "logs",
				PollInterval: 5 * time.Minute,
				MaxRows:      500,
				RemoveOnSend: true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Root:       "/config/root",
				StreamName: "config-stream",
			},
			changed: map[string]bool{"root": true},
			initial: Config{
				Root: "/flag/root",
			},
			expected: Config{
				Root:       "/flag/root", // unchanged because flag was set
				StreamName: "config-stream",
			},
		},
		{
			name: "explicit false overrides true default",
			fileConfig: FileConfig{
				Structured: &falseVal,
			},
			changed:  map[string]bool{},
			initial:  Config{Structured: true},
			expected: Config{Structured: false},
		},
		{
			name: "handles all field types correctly",
			fileConfig: FileConfig{
				Root:         "/spool",
				Prefix:       "rec",
				StreamName:   "events",
				ServiceURL:   "http://example.com",
				AuthKey:      "secret",
				MaxRows:      25,
				RemoveOnSend: &trueVal,
				Structured:   &falseVal,
				PollInterval: "1m",
				HTTPTimeout:  "45s",
				LogLevel:     "debug",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Root:         "/spool",
				Prefix:       "rec",
				StreamName:   "events",
				ServiceURL:   "http://example.com",
				AuthKey:      "secret",
				MaxRows:      25,
				RemoveOnSend: true,
				Structured:   false,
				PollInterval: time.Minute,
				HTTPTimeout:  45 * time.Second,
				LogLevel:     "debug",
			},
		},
		{
			name: "zero max rows leaves current value",
			fileConfig: FileConfig{
				MaxRows: 0,
			},
			changed:  map[string]bool{},
			initial:  Config{MaxRows: 10},
			expected: Config{MaxRows: 10},
		},
		{
			name: "invalid duration",
			fileConfig: FileConfig{
				HTTPTimeout: "soon",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
root = "/var/spool/stageship"
stream = "logs"
max_rows = 200
poll_interval = "5s"
structured = false
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.Root != "/var/spool/stageship" {
		t.Errorf("Root = %v, want /var/spool/stageship", fc.Root)
	}
	if fc.StreamName != "logs" {
		t.Errorf("StreamName = %v, want logs", fc.StreamName)
	}
	if fc.MaxRows != 200 {
		t.Errorf("MaxRows = %v, want 200", fc.MaxRows)
	}
	if fc.PollInterval != "5s" {
		t.Errorf("PollInterval = %v, want 5s", fc.PollInterval)
	}
	if fc.Structured == nil || *fc.Structured != false {
		t.Errorf("Structured = %v, want false", fc.Structured)
	}
	if fc.RemoveOnSend != nil {
		t.Errorf("RemoveOnSend = %v, want nil", fc.RemoveOnSend)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
root = "/test"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".stageship") {
		t.Errorf("DefaultConfigPath() = %v, should contain .stageship", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
