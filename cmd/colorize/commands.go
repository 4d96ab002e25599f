package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/edge-colorizer/internal/colorizer"
	"github.com/Brownie44l1/edge-colorizer/internal/config"
	"github.com/Brownie44l1/edge-colorizer/internal/model"
	"github.com/Brownie44l1/edge-colorizer/internal/weights"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "colorize",
		Short:         "Colorize grayscale images with the edge-aware generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newGenWeightsCmd(), newInspectCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configDir string
		outDir    string
		backend   string
		weightsP  string
		baseWidth int
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "run <image>...",
		Short: "Colorize images and write original, grayscale, edges and colorized PNGs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.LoadConfig(configDir)
			if err != nil {
				return err
			}
			cfg, err := config.ParseConfig(v)
			if err != nil {
				return err
			}
			if verbose {
				cfg.Log.Level = "debug"
			}
			cfg.Log.Format = "text"
			if err := cfg.Log.ConfigureLogger(); err != nil {
				return err
			}

			opts := cfg.Model.LoadOptions()
			if backend != "" {
				opts.Backend = backend
			}
			if weightsP != "" {
				opts.WeightsPath = weightsP
			}
			if baseWidth > 0 {
				opts.BaseWidth = baseWidth
			}
			b, err := model.Load(opts)
			if err != nil {
				return err
			}
			defer b.Close()

			c := colorizer.New(b)
			for _, path := range args {
				if err := colorizeFile(c, path, outDir, cmd.OutOrStdout()); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config", "./config", "directory holding config.yaml")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&backend, "backend", "", "override model.backend (native or onnx)")
	cmd.Flags().StringVarP(&weightsP, "weights", "w", "", "override model.weights_path")
	cmd.Flags().IntVar(&baseWidth, "base-width", 0, "override model.base_width")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log timings")
	return cmd
}

func colorizeFile(c *colorizer.Colorizer, path, outDir string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := c.Colorize(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	images := res.Images()
	for _, kind := range colorizer.Kinds {
		png, err := colorizer.EncodePNG(images[kind])
		if err != nil {
			return err
		}
		dst := filepath.Join(outDir, stem+"_"+kind+".png")
		if err := os.WriteFile(dst, png, 0o644); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "%s: colorfulness %.1f\n", path, colorizer.Colorfulness(res.Colorized))
	return nil
}

func newGenWeightsCmd() *cobra.Command {
	var (
		out       string
		seed      uint64
		std       float64
		baseWidth int
	)
	cmd := &cobra.Command{
		Use:   "gen-weights",
		Short: "Write a randomly initialized weight bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			arch := model.NewArchitecture(2, 2, baseWidth)
			b := model.RandomBundle(arch, rand.New(rand.NewPCG(seed, seed)), std)
			b.Metadata = map[string]string{"base_width": fmt.Sprint(baseWidth), "seed": fmt.Sprint(seed)}
			if err := weights.Save(out, b); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"path": out, "tensors": b.Len()}).Info("weights written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "generator.safetensors", "output path")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&std, "std", 0.02, "standard deviation of convolution weights")
	cmd.Flags().IntVar(&baseWidth, "base-width", 64, "first-stage channel width")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var baseWidth int
	cmd := &cobra.Command{
		Use:   "inspect <weights>",
		Short: "List a bundle's parameters and check that they bind to the generator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := weights.Open(args[0])
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			for _, name := range b.Names() {
				shape, _ := b.Shape(name)
				fmt.Fprintf(&buf, "%-40s %v\n", name, shape)
			}
			if _, err := buf.WriteTo(cmd.OutOrStdout()); err != nil {
				return err
			}

			g, err := model.NewGenerator(model.NewArchitecture(2, 2, baseWidth), b, model.WithWorkers(1))
			if err != nil {
				return err
			}
			defer g.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d parameters\n", g.Info().Parameters)
			return nil
		},
	}
	cmd.Flags().IntVar(&baseWidth, "base-width", 64, "first-stage channel width")
	return cmd
}
