package weights

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
)

// FromTensors builds an in-memory bundle. Wrapper prefixes are stripped the
// same way as for bundles read from disk.
func FromTensors(tensors map[string]*tensor.Tensor) *Bundle {
	b := &Bundle{tensors: make(map[string]*tensor.Tensor, len(tensors))}
	for name, t := range tensors {
		b.tensors[name] = t
	}
	b.unwrap()
	return b
}

// Write encodes tensors as an F32 safetensors bundle, names in sorted order.
func Write(w io.Writer, b *Bundle) error {
	header := map[string]any{}
	if len(b.Metadata) > 0 {
		header["__metadata__"] = b.Metadata
	}

	var body bytes.Buffer
	for _, name := range b.Names() {
		t := b.tensors[name]
		start := body.Len()
		for _, v := range t.Data {
			if err := binary.Write(&body, binary.LittleEndian, math.Float32bits(v)); err != nil {
				return err
			}
		}
		shape := t.Shape()
		if shape == nil {
			shape = []int{}
		}
		header[name] = entry{DType: "F32", Shape: shape, Offsets: [2]int64{int64(start), int64(body.Len())}}
	}

	raw, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(raw))); err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	_, err = body.WriteTo(w)
	return err
}

func Save(path string, b *Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, b); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
