package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corvid-labs/raven/cli/config"
)

func TestInitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	var stdout, stderr bytes.Buffer
	app := NewApp(WithIO(strings.NewReader(""), &stdout, &stderr))
	app.root.SetArgs([]string{"init", "--config", path, "--default-model", "raven-mini"})

	if err := app.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DefaultModel != "raven-mini" {
		t.Errorf("DefaultModel = %q, want raven-mini", cfg.DefaultModel)
	}
	if cfg.APIKeyRef != "default" {
		t.Errorf("APIKeyRef = %q, want default", cfg.APIKeyRef)
	}
	if !strings.Contains(stdout.String(), "Created") {
		t.Errorf("stdout = %q, want creation message", stdout.String())
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	run := func(extra ...string) error {
		var stdout, stderr bytes.Buffer
		app := NewApp(WithIO(strings.NewReader(""), &stdout, &stderr))
		app.root.SetArgs(append([]string{"init", "--config", path}, extra...))
		return app.Execute()
	}

	if err := run(); err != nil {
		t.Fatalf("first init error = %v", err)
	}
	if err := run(); err == nil {
		t.Error("second init should refuse to overwrite without --force")
	}
	if err := run("--force"); err != nil {
		t.Errorf("init --force error = %v", err)
	}
}
