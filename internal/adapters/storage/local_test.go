package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorageUploadAndExists(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(t.TempDir(), "a.tif")
	if err := os.WriteFile(src, []byte("tiff"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewLocalStorage(base, "")
	ctx := context.Background()

	exists, err := s.Exists(ctx, "indicator/air/a.tif")
	if err != nil || exists {
		t.Errorf("Exists before upload = (%v, %v), want (false, nil)", exists, err)
	}

	if err := s.Upload(ctx, src, "indicator/air/a.tif"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err = s.Exists(ctx, "indicator/air/a.tif")
	if err != nil || !exists {
		t.Errorf("Exists after upload = (%v, %v), want (true, nil)", exists, err)
	}

	data, err := os.ReadFile(filepath.Join(base, "indicator", "air", "a.tif"))
	if err != nil || string(data) != "tiff" {
		t.Errorf("uploaded content = (%q, %v)", data, err)
	}
}

func TestLocalStorageList(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"a.tif", "nested/b.tif", "notes.txt"} {
		p := filepath.Join(base, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	s := NewLocalStorage(base, "")
	objects, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	keys := map[string]bool{}
	for _, o := range objects {
		keys[o.Key] = true
	}
	if len(objects) != 2 || !keys["a.tif"] || !keys["nested/b.tif"] {
		t.Errorf("List keys = %v, want the two .tif files", keys)
	}
}

func TestLocalStorageURL(t *testing.T) {
	withURL := NewLocalStorage("/srv/cog", "https://example.org/cog/")
	if got := withURL.URL("air/a.tif"); got != "https://example.org/cog/air/a.tif" {
		t.Errorf("URL = %q", got)
	}

	withoutURL := NewLocalStorage("/srv/cog", "")
	if got := withoutURL.URL("air/a.tif"); got != filepath.Join("/srv/cog", "air", "a.tif") {
		t.Errorf("URL = %q, want file path fallback", got)
	}
}
