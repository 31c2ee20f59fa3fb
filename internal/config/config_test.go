package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{DefaultProfile: "work"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestProfileRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "profile.toml")

	p := &Profile{
		UserID:           "user-42",
		BackendDSN:       "postgres://localhost/pawchat?sslmode=disable",
		NatsURL:          "nats://localhost:4222",
		SimulatePresence: true,
	}
	if err := SaveProfile(path, p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	loaded, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if loaded.UserID != "user-42" {
		t.Errorf("UserID = %q, want user-42", loaded.UserID)
	}
	if !loaded.SimulatePresence {
		t.Error("SimulatePresence = false, want true")
	}
}

func TestLoadProfileRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
	}{
		{"missing user_id", Profile{BackendDSN: "dsn", NatsURL: "nats://x"}},
		{"missing backend_dsn", Profile{UserID: "u", NatsURL: "nats://x"}},
		{"missing nats_url", Profile{UserID: "u", BackendDSN: "dsn"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "profile.toml")
			if err := SaveProfile(path, &tt.profile); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadProfile(path); err == nil {
				t.Error("LoadProfile() expected error for incomplete profile")
			}
		})
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
