package types

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveAssetPath_AllowsRelativePaths(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "images"), 0o755); err != nil {
		t.Fatalf("mkdir images: %v", err)
	}
	filePath := filepath.Join(root, "images", "logo.png")
	if err := os.WriteFile(filePath, []byte("png"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	abs, err := ResolveAssetPath(root, "images/logo.png", []string{".png"})
	if err != nil {
		t.Fatalf("resolve relative path: %v", err)
	}
	if abs != filePath {
		t.Fatalf("expected %s, got %s", filePath, abs)
	}

	dotted, err := ResolveAssetPath(root, "./images/../images/logo.png", []string{".PNG"})
	if err != nil {
		t.Fatalf("resolve dotted path: %v", err)
	}
	if dotted != filePath {
		t.Fatalf("expected %s, got %s", filePath, dotted)
	}
}

func TestResolveAssetPath_RejectsEscapeAndAbsolutePaths(t *testing.T) {
	root := t.TempDir()

	if _, err := ResolveAssetPath(root, "../outside.png", []string{".png"}); !errors.Is(err, ErrPathEscapesRoot) {
		t.Fatalf("expected traversal path to fail with ErrPathEscapesRoot, got %v", err)
	}

	absPath := filepath.Join(root, "outside.png")
	if _, err := ResolveAssetPath(root, absPath, []string{".png"}); err == nil {
		t.Fatal("expected absolute path to fail")
	}

	if _, err := ResolveAssetPath(root, "notes.txt", []string{".png"}); err == nil {
		t.Fatal("expected unsupported extension to fail")
	}

	if _, err := ResolveAssetPath(root, "  ", nil); err == nil {
		t.Fatal("expected empty path to fail")
	}
}

func TestReadAssetFile_ReadsBytes(t *testing.T) {
	root := t.TempDir()
	want := []byte{0x89, 'P', 'N', 'G'}
	if err := os.WriteFile(filepath.Join(root, "a.png"), want, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	data, path, err := ReadAssetFile(root, "a.png", []string{".png"})
	if err != nil {
		t.Fatalf("read asset: %v", err)
	}
	if string(data) != string(want) {
		t.Fatalf("unexpected bytes: %v", data)
	}
	if filepath.Base(path) != "a.png" {
		t.Fatalf("unexpected resolved path: %s", path)
	}
}

func TestReadAssetFile_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "images"), 0o755); err != nil {
		t.Fatalf("mkdir images: %v", err)
	}

	outsideRoot := t.TempDir()
	outsideFile := filepath.Join(outsideRoot, "outside.png")
	if err := os.WriteFile(outsideFile, []byte("png"), 0o644); err != nil {
		t.Fatalf("write outside file: %v", err)
	}

	linkPath := filepath.Join(root, "images", "linked.png")
	if err := os.Symlink(outsideFile, linkPath); err != nil {
		t.Skipf("symlink not supported in current environment: %v", err)
	}

	_, _, err := ReadAssetFile(root, "images/linked.png", []string{".png"})
	if !errors.Is(err, ErrPathEscapesRoot) {
		t.Fatalf("expected symlink escape to be rejected, got %v", err)
	}
}
