package jobs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/edge-colorizer/internal/colorizer"
)

type Processor struct {
	colorizer     *colorizer.Colorizer
	store         *Store
	paletteSize   int
	paletteMethod colorizer.PaletteMethod
}

func NewProcessor(c *colorizer.Colorizer, store *Store, paletteSize int, method colorizer.PaletteMethod) *Processor {
	return &Processor{colorizer: c, store: store, paletteSize: paletteSize, paletteMethod: method}
}

// Process colorizes a queued job and stores its images. Failures of the
// image itself are recorded on the job; only storage errors are returned.
func (p *Processor) Process(ctx context.Context, task Task) error {
	log := logrus.WithField("job_id", task.JobID)

	job, err := p.store.Get(task.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status == StatusCompleted {
		log.Info("job already completed, skipping")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	job.Status = StatusProcessing
	if err := p.store.Update(job); err != nil {
		return err
	}

	if err := p.run(job); err != nil {
		log.WithError(err).Error("job failed")
		job.Status = StatusFailed
		job.Error = err.Error()
		return p.store.Update(job)
	}

	job.Status = StatusCompleted
	job.Error = ""
	if err := p.store.Update(job); err != nil {
		return err
	}
	log.Info("job completed")
	return nil
}

func (p *Processor) run(job *Job) error {
	input, err := p.store.Input(job.ID)
	if err != nil {
		return err
	}
	res, err := p.colorizer.Colorize(input)
	if err != nil {
		return err
	}

	images := res.Images()
	job.Images = job.Images[:0]
	for _, kind := range colorizer.Kinds {
		data, err := colorizer.EncodePNG(images[kind])
		if err != nil {
			return err
		}
		if err := p.store.SaveImage(job.ID, kind, data); err != nil {
			return fmt.Errorf("failed to store %s: %w", kind, err)
		}
		job.Images = append(job.Images, kind)
	}
	job.Palette = colorizer.Palette(res.Colorized, p.paletteSize, p.paletteMethod)
	job.Colorfulness = colorizer.Colorfulness(res.Colorized)
	return nil
}
