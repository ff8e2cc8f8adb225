package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileIsFine(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "nope.env"))
	if err := Load(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoad_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("FLASHARB_DOTENV_A=from-file\nFLASHARB_DOTENV_B=from-file\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("FLASHARB_DOTENV_A", "from-env")
	t.Setenv("FLASHARB_DOTENV_B", "")
	os.Unsetenv("FLASHARB_DOTENV_B")

	if err := Load(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := os.Getenv("FLASHARB_DOTENV_A"); got != "from-env" {
		t.Fatalf("A: got %q want %q", got, "from-env")
	}
	if got := os.Getenv("FLASHARB_DOTENV_B"); got != "from-file" {
		t.Fatalf("B: got %q want %q", got, "from-file")
	}
}
