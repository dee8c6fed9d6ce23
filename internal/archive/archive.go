// Package archive stores published render artifacts alongside checksum
// sidecars so operators can verify a copy long after the staging source
// is cleaned up.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store copies the artifact at src into dir, re-reads the copy to confirm
// it matches the source, and writes a <name>.sha256 sidecar next to it.
// A copy that fails verification is removed. Returns the archived path.
func Store(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(src))

	sum, size, err := copyHashed(src, dst)
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", filepath.Base(src), err)
	}

	copySum, copySize, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("verify archive copy: %w", err)
	}
	if copySize != size || copySum != sum {
		_ = os.Remove(dst)
		return "", fmt.Errorf("archive %s: copy does not match source", filepath.Base(src))
	}

	sidecar := dst + ".sha256"
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(dst))
	if err := os.WriteFile(sidecar, []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("write checksum sidecar: %w", err)
	}
	return dst, nil
}

func copyHashed(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, err
	}

	hasher := sha256.New()
	size, err := io.Copy(out, io.TeeReader(in, hasher))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
