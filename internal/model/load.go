package model

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/edge-colorizer/internal/weights"
)

// LoadOptions selects and locates the inference backend.
type LoadOptions struct {
	Backend      string
	WeightsPath  string
	OnnxPath     string
	MetadataPath string
	OnnxLibrary  string
	Workers      int
	// BaseWidth overrides the generator's first-stage width; 0 keeps 64.
	BaseWidth int
}

// Load builds the configured backend. The native backend binds a
// safetensors bundle to the default architecture; the onnx backend needs the
// exported model and, when present, its metadata sidecar.
func Load(opts LoadOptions) (Backend, error) {
	switch opts.Backend {
	case "", "native":
		bundle, err := weights.Open(opts.WeightsPath)
		if err != nil {
			return nil, err
		}
		arch := DefaultArchitecture()
		if opts.BaseWidth > 0 {
			arch = NewArchitecture(arch.InChannels, arch.OutChannels, opts.BaseWidth)
		}
		g, err := NewGenerator(arch, bundle, WithWorkers(opts.Workers))
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"weights":    opts.WeightsPath,
			"parameters": g.Info().Parameters,
		}).Info("native generator loaded")
		return g, nil

	case "onnx":
		s := int64(DefaultArchitecture().Size)
		meta := Metadata{
			InputShape:  []int64{1, 2, s, s},
			OutputShape: []int64{1, 2, s, s},
			ImageSize:   int(s),
		}
		if opts.MetadataPath != "" {
			m, err := ReadMetadata(opts.MetadataPath)
			switch {
			case err == nil:
				meta = m
			case !errors.Is(err, fs.ErrNotExist):
				return nil, err
			}
		}
		b, err := NewONNXBackend(opts.OnnxPath, opts.OnnxLibrary, meta)
		if err != nil {
			return nil, err
		}
		logrus.WithField("model", opts.OnnxPath).Info("onnx generator loaded")
		return b, nil
	}
	return nil, fmt.Errorf("unknown model backend %q", opts.Backend)
}
