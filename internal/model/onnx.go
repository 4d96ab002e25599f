package model

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
)

// ONNXBackend runs an exported generator through ONNX Runtime. The session is
// bound to one input and one output tensor, so runs are serialized.
type ONNXBackend struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// ReadMetadata loads the JSON sidecar exported with the model.
func ReadMetadata(path string) (Metadata, error) {
	var metadata Metadata
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return metadata, nil
}

// NewONNXBackend creates the session. libraryPath may be empty to use the
// runtime's default shared library lookup.
func NewONNXBackend(modelPath, libraryPath string, metadata Metadata) (*ONNXBackend, error) {
	if len(metadata.InputShape) != 4 || len(metadata.OutputShape) != 4 {
		return nil, fmt.Errorf("%w: onnx metadata shapes %v -> %v", ErrShape, metadata.InputShape, metadata.OutputShape)
	}
	if metadata.InputName == "" {
		metadata.InputName = "input"
	}
	if metadata.OutputName == "" {
		metadata.OutputName = "output"
	}
	metadata.Backend = "onnx"

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXBackend{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (s *ONNXBackend) Info() Metadata { return s.Metadata }

func (s *ONNXBackend) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	want := make([]int, len(s.Metadata.InputShape))
	for i, d := range s.Metadata.InputShape {
		want[i] = int(d)
	}
	if !x.HasShape(want...) {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrShape, x.Shape(), want)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), x.Data)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	shape := make([]int, len(s.Metadata.OutputShape))
	for i, d := range s.Metadata.OutputShape {
		shape[i] = int(d)
	}
	return tensor.FromData(slices.Clone(s.outputTensor.GetData()), shape...)
}

func (s *ONNXBackend) Close() error {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	return ort.DestroyEnvironment()
}
