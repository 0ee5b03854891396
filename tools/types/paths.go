package types

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrPathEscapesRoot = errors.New("path escapes asset root")

// ResolveAssetPath resolves input relative to root. Absolute paths, paths that
// leave root and files outside allowedExts are rejected.
func ResolveAssetPath(root, input string, allowedExts []string) (string, error) {
	cleanInput := strings.TrimSpace(input)
	if cleanInput == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(cleanInput) {
		return "", fmt.Errorf("absolute paths are not allowed")
	}

	rel := strings.ReplaceAll(cleanInput, "\\", "/")
	rel = strings.TrimPrefix(rel, "./")
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}

	cleanRel := filepath.Clean(rel)
	if cleanRel == "." || cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", ErrPathEscapesRoot
	}

	rootAbs, err := filepath.Abs(rootOrCWD(root))
	if err != nil {
		return "", fmt.Errorf("resolve asset root: %w", err)
	}

	fullAbs, err := filepath.Abs(filepath.Join(rootAbs, cleanRel))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	if !isWithinRoot(fullAbs, rootAbs) {
		return "", ErrPathEscapesRoot
	}

	if len(allowedExts) > 0 {
		ext := strings.ToLower(filepath.Ext(fullAbs))
		allowed := false
		for _, candidate := range allowedExts {
			if ext == strings.ToLower(strings.TrimSpace(candidate)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("unsupported file extension: %s", ext)
		}
	}

	return fullAbs, nil
}

// ReadAssetFile reads a file resolved by ResolveAssetPath after following
// symlinks, which must also stay inside root. It returns the data and the
// resolved path.
func ReadAssetFile(root, input string, allowedExts []string) ([]byte, string, error) {
	fullPath, err := ResolveAssetPath(root, input, allowedExts)
	if err != nil {
		return nil, "", err
	}

	rootAbs, err := filepath.Abs(rootOrCWD(root))
	if err != nil {
		return nil, "", fmt.Errorf("resolve asset root: %w", err)
	}
	rootReal := rootAbs
	if resolvedRoot, resolveErr := filepath.EvalSymlinks(rootAbs); resolveErr == nil {
		rootReal = resolvedRoot
	}

	resolvedPath, err := filepath.EvalSymlinks(fullPath)
	if err != nil {
		return nil, "", err
	}
	if !isWithinRoot(resolvedPath, rootReal) {
		return nil, "", ErrPathEscapesRoot
	}

	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", err
	}
	return data, fullPath, nil
}

func rootOrCWD(root string) string {
	if strings.TrimSpace(root) == "" {
		return "."
	}
	return root
}

func isWithinRoot(path string, root string) bool {
	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(root)
	rootWithSep := cleanRoot + string(filepath.Separator)
	if cleanPath == cleanRoot {
		return true
	}
	return strings.HasPrefix(cleanPath, rootWithSep)
}
