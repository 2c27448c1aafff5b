package pool

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCleanup(t *testing.T) {
	t.Run("CleanupAddAllocatesZeroedData", func(t *testing.T) {
		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		h, err := p.CleanupAdd(16)
		if err != nil {
			t.Fatalf("CleanupAdd: %v", err)
		}

		if h.Data == nil {
			t.Fatal("expected CleanupAdd(16) to allocate Data")
		}
	})

	t.Run("RunCleanupFileMatchesByFD", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "spool")

		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("os.Create: %v", err)
		}

		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		fd := int(f.Fd())
		data := &FileCleanupData{FD: fd, Name: path, File: f}

		if _, err := p.CleanupAddCloseFD(data); err != nil {
			t.Fatalf("CleanupAddCloseFD: %v", err)
		}

		if !p.RunCleanupFile(fd) {
			t.Fatal("RunCleanupFile did not find the matching handler")
		}

		if p.RunCleanupFile(fd) {
			t.Fatal("RunCleanupFile matched an already-run handler twice")
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected file to still exist after CloseFD: %v", err)
		}
	})

	t.Run("RunCleanupFileIgnoresDeleteVariant", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "spool")

		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("os.Create: %v", err)
		}

		p, err := New(4096, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		fd := int(f.Fd())
		data := &FileCleanupData{FD: fd, Name: path, File: f}

		if _, err := p.CleanupAddCloseAndDeleteFile(data); err != nil {
			t.Fatalf("CleanupAddCloseAndDeleteFile: %v", err)
		}

		if p.RunCleanupFile(fd) {
			t.Fatal("RunCleanupFile should not match a CloseAndDeleteFile handler")
		}

		p.Destroy()

		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatal("expected Destroy to delete the file via the CloseAndDeleteFile handler")
		}
	})
}
