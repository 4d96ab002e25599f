package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateInspectAndRun(t *testing.T) {
	dir := t.TempDir()
	weightsPath := filepath.Join(dir, "g.safetensors")

	_, err := execute(t, "gen-weights", "-o", weightsPath, "--base-width", "2", "--seed", "3")
	require.NoError(t, err)

	out, err := execute(t, "inspect", weightsPath, "--base-width", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "final.0.bias")
	assert.Contains(t, out, "ok:")

	_, err = execute(t, "inspect", weightsPath)
	assert.Error(t, err)

	img := image.NewGray(image.Rect(0, 0, 50, 40))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	input := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(input, buf.Bytes(), 0o644))

	outDir := filepath.Join(dir, "out")
	out, err = execute(t, "run", input, "--config", dir, "-w", weightsPath, "--base-width", "2", "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "colorfulness")

	for _, kind := range []string{"original", "grayscale", "edges", "colorized"} {
		f, err := os.Open(filepath.Join(outDir, "photo_"+kind+".png"))
		require.NoError(t, err, kind)
		decoded, err := png.Decode(f)
		f.Close()
		require.NoError(t, err, kind)
		assert.Equal(t, image.Rect(0, 0, 256, 256), decoded.Bounds())
	}
}

func TestRunRequiresInput(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}
