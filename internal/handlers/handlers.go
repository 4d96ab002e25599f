package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/edge-colorizer/internal/colorizer"
	"github.com/Brownie44l1/edge-colorizer/internal/jobs"
)

// Options tunes the handler; zero values fall back to defaults.
type Options struct {
	MaxUploadBytes int64
	PaletteSize    int
	PaletteMethod  colorizer.PaletteMethod
}

type Handler struct {
	colorizer *colorizer.Colorizer
	jobs      *jobs.Store
	producer  jobs.Producer
	opts      Options
}

// NewHandler wires the synchronous endpoints. store and producer may be nil,
// which disables the job endpoints.
func NewHandler(c *colorizer.Colorizer, store *jobs.Store, producer jobs.Producer, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.PaletteSize <= 0 {
		opts.PaletteSize = 5
	}
	return &Handler{colorizer: c, jobs: store, producer: producer, opts: opts}
}

type ColorizeResponse struct {
	Original     string             `json:"original"`
	Grayscale    string             `json:"grayscale"`
	Edges        string             `json:"edges"`
	Colorized    string             `json:"colorized"`
	Palette      []colorizer.Swatch `json:"palette,omitempty"`
	Colorfulness float64            `json:"colorfulness"`
}

type JobResponse struct {
	ID     string      `json:"id"`
	Status jobs.Status `json:"status"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"model":  h.colorizer.Backend().Info(),
		"jobs":   h.jobs != nil,
	})
}

// Colorize answers with the resized original, its lightness, its edge map
// and the colorized image, each a base64 PNG.
func (h *Handler) Colorize(c *gin.Context) {
	data, ok := h.readUpload(c)
	if !ok {
		return
	}
	res, ok := h.run(c, data)
	if !ok {
		return
	}

	images := res.Images()
	encoded := make(map[string]string, len(images))
	for kind, img := range images {
		s, err := colorizer.EncodeBase64PNG(img)
		if err != nil {
			h.fail(c, err)
			return
		}
		encoded[kind] = s
	}

	c.JSON(http.StatusOK, ColorizeResponse{
		Original:     encoded["original"],
		Grayscale:    encoded["grayscale"],
		Edges:        encoded["edges"],
		Colorized:    encoded["colorized"],
		Palette:      colorizer.Palette(res.Colorized, h.opts.PaletteSize, h.opts.PaletteMethod),
		Colorfulness: colorizer.Colorfulness(res.Colorized),
	})
}

// ColorizePNG answers with the colorized image only, as a download.
func (h *Handler) ColorizePNG(c *gin.Context) {
	data, ok := h.readUpload(c)
	if !ok {
		return
	}
	res, ok := h.run(c, data)
	if !ok {
		return
	}
	png, err := colorizer.EncodePNG(res.Colorized)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="colorized.png"`)
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) SubmitJob(c *gin.Context) {
	if !h.jobsEnabled(c) {
		return
	}
	data, ok := h.readUpload(c)
	if !ok {
		return
	}

	job, err := h.jobs.Create(data)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.producer.Send(c.Request.Context(), jobs.Task{JobID: job.ID}); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, JobResponse{ID: job.ID, Status: job.Status})
}

func (h *Handler) GetJob(c *gin.Context) {
	if !h.jobsEnabled(c) {
		return
	}
	job, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) GetJobImage(c *gin.Context) {
	if !h.jobsEnabled(c) {
		return
	}
	rc, err := h.jobs.OpenImage(c.Param("id"), c.Param("kind"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "image/png", rc, nil)
}

// readUpload returns the bytes of the "file" form field ("image" is accepted
// too). It writes the error response itself when it returns false.
func (h *Handler) DeleteJob(c *gin.Context) {
	if !h.jobsEnabled(c) {
		return
	}
	if err := h.jobs.Delete(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) readUpload(c *gin.Context) ([]byte, bool) {
	if c.Request.ContentLength > h.opts.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return nil, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)

	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		header, err = c.FormFile("image")
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided, use 'file' as the form field name"})
		return nil, false
	}

	data, err := readFile(header)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return nil, false
	}
	logrus.WithFields(logrus.Fields{"filename": header.Filename, "bytes": len(data)}).Debug("upload received")
	return data, true
}

func readFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// run colorizes data, giving up when the request context ends first.
func (h *Handler) run(c *gin.Context, data []byte) (*colorizer.Result, bool) {
	type outcome struct {
		res *colorizer.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.colorizer.Colorize(data)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			h.fail(c, o.err)
			return nil, false
		}
		return o.res, true
	case <-c.Request.Context().Done():
		h.fail(c, c.Request.Context().Err())
		return nil, false
	}
}

func (h *Handler) jobsEnabled(c *gin.Context) bool {
	if h.jobs == nil || h.producer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "jobs are not enabled"})
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, colorizer.ErrDecode), errors.Is(err, jobs.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, jobs.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
