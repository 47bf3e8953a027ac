package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/fakeconsul/config"
	"github.com/jrife/fakeconsul/utils/log"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return path
}

func TestDefault(t *testing.T) {
	expected := &config.Config{
		Snapshot: config.SnapshotConfig{Driver: "file", Dir: os.TempDir()},
		Log:      log.Config{Level: "info", Format: "json"},
	}

	if diff := cmp.Diff(expected, config.Default()); diff != "" {
		t.Fatal(diff)
	}

	if err := config.Default().Validate(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestLoad(t *testing.T) {
	testCases := map[string]struct {
		file   string
		env    map[string]string
		result *config.Config
	}{
		"no-file": {
			result: config.Default(),
		},
		"file": {
			file: "snapshot:\n  driver: bbolt\n  dir: /var/lib/fakeconsul\nlog:\n  level: debug\n  format: console\n",
			result: &config.Config{
				Snapshot: config.SnapshotConfig{Driver: "bbolt", Dir: "/var/lib/fakeconsul"},
				Log:      log.Config{Level: "debug", Format: "console"},
			},
		},
		"partial-file": {
			file: "log:\n  level: warn\n",
			result: &config.Config{
				Snapshot: config.SnapshotConfig{Driver: "file", Dir: os.TempDir()},
				Log:      log.Config{Level: "warn", Format: "json"},
			},
		},
		"env-overrides-file": {
			file: "snapshot:\n  driver: file\n  dir: /a\n",
			env: map[string]string{
				"FAKECONSUL_SNAPSHOT_DRIVER": "bbolt",
				"FAKECONSUL_LOG_FORMAT":      "console",
			},
			result: &config.Config{
				Snapshot: config.SnapshotConfig{Driver: "bbolt", Dir: "/a"},
				Log:      log.Config{Level: "info", Format: "console"},
			},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			for key, value := range testCase.env {
				t.Setenv(key, value)
			}

			path := ""

			if testCase.file != "" {
				path = writeConfig(t, testCase.file)
			}

			cfg, err := config.Load(path)

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(testCase.result, cfg); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	testCases := map[string]struct {
		file string
		path string
	}{
		"unknown-driver": {
			file: "snapshot:\n  driver: etcd\n",
		},
		"unknown-level": {
			file: "log:\n  level: loud\n",
		},
		"unknown-format": {
			file: "log:\n  format: xml\n",
		},
		"bad-yaml": {
			file: "snapshot: [\n",
		},
		"missing-file": {
			path: "does-not-exist.yaml",
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			path := testCase.path

			if testCase.file != "" {
				path = writeConfig(t, testCase.file)
			} else {
				path = filepath.Join(t.TempDir(), path)
			}

			if _, err := config.Load(path); err == nil {
				t.Fatalf("expected err to be non-nil")
			}
		})
	}
}
