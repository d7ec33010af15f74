package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/straja-ai/hatescan/internal/preprocess"
)

// Backends.
const (
	BackendNative = "native"
	BackendONNX   = "onnx"
)

// ManifestFile pins one artifact file.
type ManifestFile struct {
	Path   string `yaml:"path"`
	SHA256 string `yaml:"sha256"`
	Size   int64  `yaml:"size"`
}

// Manifest describes an artifact directory. Every field is optional.
type Manifest struct {
	Version       string              `yaml:"version"`
	Backend       string              `yaml:"backend"`
	Vectorizer    string              `yaml:"vectorizer"`
	Model         string              `yaml:"model"`
	Classes       []string            `yaml:"classes"`
	PositiveClass string              `yaml:"positive_class"`
	Preprocess    *preprocess.Options `yaml:"preprocess"`
	ONNX          ONNXIO              `yaml:"onnx"`
	Files         []ManifestFile      `yaml:"files"`
}

// ONNXIO names the graph input and probability output.
type ONNXIO struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// LoadManifest reads <dir>/manifest.yaml. found is false when the file does
// not exist; the returned manifest then only carries defaults.
func LoadManifest(dir, fallbackBackend string) (m Manifest, found bool, err error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, false, fmt.Errorf("decode manifest: %w", err)
		}
		found = true
	case errors.Is(err, os.ErrNotExist):
	default:
		return Manifest{}, false, fmt.Errorf("read manifest: %w", err)
	}

	if m.Backend == "" {
		m.Backend = fallbackBackend
	}
	m.Backend = strings.ToLower(strings.TrimSpace(m.Backend))
	if m.Backend == "" {
		m.Backend = BackendNative
	}
	if m.Backend != BackendNative && m.Backend != BackendONNX {
		return Manifest{}, found, fmt.Errorf("manifest backend %q must be native or onnx", m.Backend)
	}
	if m.Vectorizer == "" {
		m.Vectorizer = "vectorizer.json"
	}
	if m.Model == "" {
		m.Model = "model.json"
		if m.Backend == BackendONNX {
			m.Model = "model.onnx"
		}
	}
	if m.PositiveClass == "" {
		m.PositiveClass = "1"
	}
	if m.ONNX.Input == "" {
		m.ONNX.Input = "float_input"
	}
	if m.ONNX.Output == "" {
		m.ONNX.Output = "probabilities"
	}
	return m, found, nil
}

// Verify checks every pinned file's size and sha256.
func (m Manifest) Verify(dir string) error {
	for _, f := range m.Files {
		local, err := resolveArtifactPath(dir, f.Path)
		if err != nil {
			return fmt.Errorf("resolve path %s: %w", f.Path, err)
		}
		info, err := os.Stat(local)
		if err != nil {
			return fmt.Errorf("stat %s: %w", f.Path, err)
		}
		if f.Size > 0 && info.Size() != f.Size {
			return fmt.Errorf("size mismatch for %s: expected %d got %d", f.Path, f.Size, info.Size())
		}
		if f.SHA256 == "" {
			continue
		}
		sum, err := fileSHA256(local)
		if err != nil {
			return fmt.Errorf("hash %s: %w", f.Path, err)
		}
		if !strings.EqualFold(sum, f.SHA256) {
			return fmt.Errorf("sha256 mismatch for %s: expected %s got %s", f.Path, f.SHA256, sum)
		}
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fh.Close()
	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// resolveArtifactPath keeps manifest paths inside dir.
func resolveArtifactPath(dir, rel string) (string, error) {
	rel = filepath.FromSlash(strings.TrimSpace(rel))
	if rel == "" {
		return "", errors.New("empty path")
	}
	if filepath.IsAbs(rel) {
		return "", errors.New("absolute paths are not allowed")
	}
	clean := filepath.Clean(filepath.Join(dir, rel))
	root := filepath.Clean(dir)
	if clean != root && !strings.HasPrefix(clean, root+string(filepath.Separator)) {
		return "", errors.New("path escapes artifact dir")
	}
	return clean, nil
}
