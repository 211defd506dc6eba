package adapter

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/utils/logging"
)

// Camera owns a live video input device and samples encoded still frames
// from it. Close must be called on every exit path; it is idempotent.
type Camera interface {
	// Open acquires the device. Fails with model.ErrDeviceUnavailable
	// when permission is denied or no device exists.
	Open(ctx context.Context) error
	// CaptureFrame returns the most recent rendered frame as encoded
	// JPEG. Fails with model.ErrNotReady before the first frame.
	CaptureFrame() ([]byte, error)
	Close() error
}

// GstCamera captures JPEG frames from a V4L2 device through a GStreamer
// pipeline: v4l2src → videoconvert → jpegenc → appsink. The appsink keeps
// only the latest frame (max-buffers=1, drop=true) so CaptureFrame always
// returns the current view, never a backlog.
type GstCamera struct {
	device  string
	quality int

	pipeline *gst.Pipeline

	mu        sync.Mutex
	lastFrame []byte
	closed    bool
}

type CameraOption func(*GstCamera)

// WithJPEGQuality sets the jpegenc quality factor (0-100).
func WithJPEGQuality(quality int) CameraOption {
	return func(c *GstCamera) {
		c.quality = quality
	}
}

// NewGstCamera creates a camera for the given V4L2 device path, e.g.
// /dev/video0. The device is not acquired until Open.
func NewGstCamera(device string, opts ...CameraOption) *GstCamera {
	c := &GstCamera{
		device:  device,
		quality: 60,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *GstCamera) Open(ctx context.Context) error {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "failed to create pipeline", goerr.V("cause", err))
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "v4l2src element unavailable", goerr.V("cause", err))
	}
	if err := src.SetProperty("device", c.device); err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "failed to set device", goerr.V("device", c.device))
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "videoconvert element unavailable", goerr.V("cause", err))
	}

	encoder, err := gst.NewElement("jpegenc")
	if err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "jpegenc element unavailable", goerr.V("cause", err))
	}
	if err := encoder.SetProperty("quality", c.quality); err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "failed to set jpeg quality", goerr.V("quality", c.quality))
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "failed to create appsink", goerr.V("cause", err))
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)

	if err := pipeline.AddMany(src, convert, encoder, sink.Element); err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "failed to assemble pipeline", goerr.V("cause", err))
	}
	if err := gst.ElementLinkMany(src, convert, encoder, sink.Element); err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "failed to link pipeline", goerr.V("cause", err))
	}

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: c.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return goerr.Wrap(model.ErrDeviceUnavailable, "failed to start capture",
			goerr.V("device", c.device), goerr.V("cause", err))
	}

	c.mu.Lock()
	c.pipeline = pipeline
	c.closed = false
	c.mu.Unlock()

	logging.From(ctx).Debug("camera opened", "device", c.device, "quality", c.quality)
	return nil
}

// onNewSample copies the encoded frame out of the GStreamer buffer; the
// buffer itself is reused by the pipeline.
func (c *GstCamera) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}

	frame := make([]byte, len(data))
	copy(frame, data)
	buffer.Unmap()

	c.mu.Lock()
	c.lastFrame = frame
	c.mu.Unlock()

	return gst.FlowOK
}

func (c *GstCamera) CaptureFrame() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil || c.closed {
		return nil, goerr.Wrap(model.ErrDeviceUnavailable, "camera is not open")
	}
	if c.lastFrame == nil {
		return nil, goerr.Wrap(model.ErrNotReady, "no frame rendered yet", goerr.V("device", c.device))
	}

	return c.lastFrame, nil
}

func (c *GstCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil || c.closed {
		return nil
	}
	c.closed = true
	c.lastFrame = nil

	if err := c.pipeline.SetState(gst.StateNull); err != nil {
		return goerr.Wrap(err, "failed to release capture device", goerr.V("device", c.device))
	}
	return nil
}
