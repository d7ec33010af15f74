package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX runs an exported classifier through onnxruntime. The graph takes a
// dense float32 feature row and returns one probability per class.
type ONNX struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	classes int

	mu sync.Mutex
}

// ONNXOptions configures NewONNX.
type ONNXOptions struct {
	ModelPath  string
	LibPath    string // explicit shared library; probed when empty
	InputName  string
	OutputName string
	Dim        int
	Classes    int
}

// NewONNX initialises the runtime and opens a session for the model.
func NewONNX(opts ONNXOptions) (*ONNX, error) {
	if opts.Dim <= 0 || opts.Classes <= 0 {
		return nil, errors.New("onnx model needs a positive feature dim and class count")
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, opts.ModelPath)
		}
		return nil, fmt.Errorf("stat onnx model: %w", err)
	}

	libPath := strings.TrimSpace(opts.LibPath)
	if libPath == "" {
		libPath = resolveSharedLibraryPath(filepath.Dir(opts.ModelPath))
	}
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or model.onnx_lib")
	}
	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(opts.Dim)))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(opts.Classes)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNX{session: session, input: input, output: output, classes: opts.Classes}, nil
}

// Proba runs one inference. The session and its tensors are shared, so runs
// are serialised.
func (o *ONNX) Proba(x SparseVector) ([]float64, error) {
	if o == nil || o.session == nil {
		return nil, errors.New("onnx model not initialized")
	}
	dense := x.Dense()

	o.mu.Lock()
	defer o.mu.Unlock()

	in := o.input.GetData()
	if len(dense) != len(in) {
		return nil, fmt.Errorf("feature dim %d does not match model input %d", len(dense), len(in))
	}
	copy(in, dense)
	if err := o.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := o.output.GetData()
	out := make([]float64, len(raw))
	for i, p := range raw {
		out[i] = float64(p)
	}
	return out, nil
}

// Close releases the session and tensors.
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	if o.session != nil {
		errs = append(errs, o.session.Destroy())
		o.session = nil
	}
	if o.input != nil {
		errs = append(errs, o.input.Destroy())
		o.input = nil
	}
	if o.output != nil {
		errs = append(errs, o.output.Destroy())
		o.output = nil
	}
	return errors.Join(errs...)
}

// resolveSharedLibraryPath attempts to locate a platform-specific onnxruntime shared library.
// If ONNXRUNTIME_SHARED_LIBRARY_PATH is set, it wins; otherwise we probe common names/locations.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
