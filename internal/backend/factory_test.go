package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"saveup/internal/blob/file"
	"saveup/internal/blob/memory"
	"saveup/internal/config"
	"saveup/internal/storage"
)

func TestBackendTypeIsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("redis").IsValid() {
		t.Error("redis should not be valid")
	}
	if got := strings.Join(GetBackendTypeStrings(), ","); got != "memory,file,sqlite,postgres,sheets" {
		t.Errorf("unexpected backend list %q", got)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{StorageBackend: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{StorageBackend: "sqlite", SQLiteDBPath: "x.db", DataDir: "d"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" || cfg.DataDirectory != "d" {
		t.Fatalf("unexpected backend config: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"file without dir", Config{Type: FileBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"sheets without id", Config{Type: SheetsBackend}, true},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)
	dir := t.TempDir()

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := res.Store.(*memory.Store); !ok {
			t.Fatalf("unexpected store %T", res.Store)
		}
		if err := res.Close(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("file", func(t *testing.T) {
		dataDir := filepath.Join(dir, "files")
		res, err := f.CreateBackend(ctx, Config{Type: FileBackend, DataDirectory: dataDir})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := res.Store.(*file.Store); !ok {
			t.Fatalf("unexpected store %T", res.Store)
		}
		if _, err := os.Stat(dataDir); err != nil {
			t.Fatalf("data dir not created: %v", err)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "saveup.db")})
		if err != nil {
			t.Fatal(err)
		}
		defer res.Close()
		if _, ok := res.Store.(*storage.SQLiteStore); !ok {
			t.Fatalf("unexpected store %T", res.Store)
		}
		if err := res.Store.Save(ctx, "k", []byte("[]")); err != nil {
			t.Fatalf("save: %v", err)
		}
	})

	t.Run("sheets without credentials", func(t *testing.T) {
		t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
		if _, err := f.CreateBackend(ctx, Config{Type: SheetsBackend, GoogleSpreadsheetID: "sid"}); err == nil {
			t.Fatal("expected credentials error")
		}
	})
}

func TestBackendResultCloseNil(t *testing.T) {
	var r *BackendResult
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}
