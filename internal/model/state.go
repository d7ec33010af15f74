package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrStateNotFound is returned when state.json is missing.
var ErrStateNotFound = errors.New("model state not found")

// State tracks the active and previous artifact versions under a model dir.
type State struct {
	CurrentVersion  string `json:"current_version"`
	PreviousVersion string `json:"previous_version,omitempty"`
}

func stateFilePath(baseDir string) string {
	return filepath.Join(baseDir, "state.json")
}

// LoadState reads <model_dir>/state.json.
func LoadState(baseDir string) (State, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return State{}, errors.New("baseDir is empty")
	}

	data, err := os.ReadFile(stateFilePath(baseDir))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, ErrStateNotFound
		}
		return State{}, fmt.Errorf("read model state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode model state: %w", err)
	}
	return state, nil
}

// SaveState writes <model_dir>/state.json atomically.
func SaveState(baseDir string, state State) error {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return errors.New("baseDir is empty")
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	state.CurrentVersion = strings.TrimSpace(state.CurrentVersion)
	state.PreviousVersion = strings.TrimSpace(state.PreviousVersion)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model state: %w", err)
	}

	tmpFile, err := os.CreateTemp(baseDir, "state.json.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		tmpFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), stateFilePath(baseDir)); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// ResolveArtifactDir returns the directory holding the active artifacts:
// <baseDir>/<current_version> when state.json names one, baseDir otherwise.
func ResolveArtifactDir(baseDir string) (dir, version string, err error) {
	state, err := LoadState(baseDir)
	if errors.Is(err, ErrStateNotFound) {
		return baseDir, "", nil
	}
	if err != nil {
		return "", "", err
	}
	if state.CurrentVersion == "" {
		return baseDir, "", nil
	}
	dir = filepath.Join(baseDir, state.CurrentVersion)
	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		return "", "", fmt.Errorf("%w: active version %s has no directory", ErrArtifactMissing, state.CurrentVersion)
	}
	return dir, state.CurrentVersion, nil
}

// Activate makes version current and remembers the previous one.
func Activate(baseDir, version string) (State, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return State{}, errors.New("version is empty")
	}
	if info, err := os.Stat(filepath.Join(baseDir, version)); err != nil || !info.IsDir() {
		return State{}, fmt.Errorf("%w: version %s", ErrArtifactMissing, version)
	}

	state, err := LoadState(baseDir)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return State{}, err
	}
	if state.CurrentVersion == version {
		return state, nil
	}
	next := State{CurrentVersion: version, PreviousVersion: state.CurrentVersion}
	if err := SaveState(baseDir, next); err != nil {
		return State{}, err
	}
	return next, nil
}

// Rollback swaps the current and previous versions.
func Rollback(baseDir string) (State, error) {
	state, err := LoadState(baseDir)
	if err != nil {
		return State{}, err
	}
	if state.PreviousVersion == "" {
		return State{}, errors.New("no previous model version to roll back to")
	}
	next := State{CurrentVersion: state.PreviousVersion, PreviousVersion: state.CurrentVersion}
	if err := SaveState(baseDir, next); err != nil {
		return State{}, err
	}
	return next, nil
}
