package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/shadow-agent/internal/infrastructure/config"
	"github.com/nerrad567/shadow-agent/internal/journal"
)

// writeConfig writes a minimal valid config using dbPath and returns its path.
func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
device:
  thing_name: planter-test
mqtt:
  broker:
    host: 127.0.0.1
    port: 1883
  tls:
    enabled: false
database:
  path: "` + dbPath + `"
logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "shadowagent "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config", err)
	}
}

func TestRunCommand_RejectsArgs(t *testing.T) {
	if _, err := execute(t, "run", "extra"); err == nil {
		t.Error("run with positional args should fail")
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	if got := resolveConfigPath(""); got != defaultConfigPath {
		t.Errorf("default = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configEnv, "/etc/shadow/config.yaml")
	if got := resolveConfigPath(""); got != "/etc/shadow/config.yaml" {
		t.Errorf("env = %q", got)
	}
	if got := resolveConfigPath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("flag = %q, want flag.yaml", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SHADOWAGENT_TEST_DOTENV=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHADOWAGENT_TEST_DOTENV", "")
	os.Unsetenv("SHADOWAGENT_TEST_DOTENV")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if got := os.Getenv("SHADOWAGENT_TEST_DOTENV"); got != "from-file" {
		t.Errorf("SHADOWAGENT_TEST_DOTENV = %q, want from-file", got)
	}
}

func TestAgentConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Device.ThingName = "planter-01"
	cfg.Servo.HappyAngle = 170
	cfg.Servo.SadAngle = 10

	got := agentConfig(cfg)

	if got.Thing != "planter-01" || got.QoS != 1 {
		t.Errorf("thing/qos = %q/%d", got.Thing, got.QoS)
	}
	if got.Poses.Happy != 170 || got.Poses.Sad != 10 || got.Poses.Neutral != 90 {
		t.Errorf("poses = %+v", got.Poses)
	}
	if got.MinReportInterval != 10*time.Second || got.GetRetryInterval != 60*time.Second {
		t.Errorf("intervals = %v/%v", got.MinReportInterval, got.GetRetryInterval)
	}
	if got.Retention != cfg.Database.Retention || got.SampleInterval != cfg.InfluxDB.SampleInterval {
		t.Errorf("retention/sample = %v/%v", got.Retention, got.SampleInterval)
	}
}

func TestJournalCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	configPath := writeConfig(t, dbPath)

	// Seed the journal the way the agent would.
	ctx := context.Background()
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		t.Fatalf("openDatabase() error = %v", err)
	}
	repo := journal.NewSQLiteRepository(db.DB)
	version := uint64(5)
	for _, e := range []journal.Entry{
		{Direction: journal.DirectionInbound, Kind: "delta", Version: &version},
		{Direction: journal.DirectionOutbound, Kind: "report_delta", Version: &version},
	} {
		if err := repo.Record(ctx, &e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	db.Close()

	out, err := execute(t, "journal", "--config", configPath, "--direction", "outbound")
	if err != nil {
		t.Fatalf("journal error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1: %q", len(lines), out)
	}
	var entry journal.Entry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decoding line: %v", err)
	}
	if entry.Kind != "report_delta" || entry.Version == nil || *entry.Version != 5 {
		t.Errorf("entry = %+v", entry)
	}
}

func TestOpenDatabase_Migrates(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fresh.db")
	cfg, err := config.Load(writeConfig(t, dbPath))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	db, err := openDatabase(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openDatabase() error = %v", err)
	}
	defer db.Close()

	applied, pending, err := db.MigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) == 0 || len(pending) != 0 {
		t.Errorf("applied = %d pending = %d", len(applied), len(pending))
	}
}
