package lexicon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Mode selects how WriteTerms changes a lexicon file.
type Mode string

const (
	ModeAppend  Mode = "append"
	ModeReplace Mode = "replace"
)

const fileHeader = "# Hate/offensive keywords and phrases\n# One per line; lines starting with # are comments\n"

// ErrEmptyContent is returned by WriteTerms when content has no terms.
var ErrEmptyContent = errors.New("lexicon content is empty")

// ParseMode validates a mode string; empty means append.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAppend:
		return ModeAppend, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("lexicon mode must be append or replace, got %q", s)
	}
}

// WriteTerms appends content to, or replaces, the lexicon file at path.
// Replace keeps a copy of the previous file at path+".bak". The file is
// rewritten atomically; the caller reloads the store afterwards.
func WriteTerms(path, content string, mode Mode) error {
	lines := make([]string, 0)
	for _, l := range strings.Split(content, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		return ErrEmptyContent
	}
	normalized := strings.Join(lines, "\n") + "\n"

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create lexicon dir: %w", err)
	}

	existing, err := os.ReadFile(path)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read lexicon: %w", err)
	}

	var body string
	switch {
	case mode == ModeAppend && exists:
		body = string(existing)
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		body += normalized
	default:
		if mode == ModeReplace && exists {
			if err := copyFile(path, path+".bak"); err != nil {
				return fmt.Errorf("backup lexicon: %w", err)
			}
		}
		body = fileHeader + normalized
	}

	return writeAtomic(dir, path, []byte(body))
}

func writeAtomic(dir, path string, data []byte) error {
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp lexicon file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp lexicon file: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		tmpFile.Close()
		return fmt.Errorf("chmod temp lexicon file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp lexicon file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), path); err != nil {
		return fmt.Errorf("replace lexicon file: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
