package present

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/triangle/swapchain"
)

type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateSubmitting
	StatePresenting
	StateNeedsRecreate
)

var stateNames = map[State]string{
	StateIdle:          "Idle",
	StateAcquiring:     "Acquiring",
	StateSubmitting:    "Submitting",
	StatePresenting:    "Presenting",
	StateNeedsRecreate: "NeedsRecreate",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return "Unknown"
	}
	return name
}

// Outcome describes what a single Step did
type Outcome struct {
	// State is where the loop ended up: StateIdle, or StateNeedsRecreate if the
	// next step will rebuild the swapchain first
	State      State
	Recreated  bool
	Submitted  bool
	Presented  bool
	ImageIndex int
}

type Options struct {
	Width  int
	Height int

	// PauseInterval is how long Run sleeps between event polls while the window
	// is minimized
	PauseInterval time.Duration
	// StatsInterval is how often Run logs frame timings. 0 disables it.
	StatsInterval time.Duration

	Logger logrus.FieldLogger
}

// Loop owns the swapchain, its per-image frames and all synchronization state.
// It is not safe for concurrent use; one goroutine drives it from start to Close.
type Loop struct {
	device  Device
	options Options
	log     logrus.FieldLogger

	desired    core1_0.Extent2D
	swapchain  Swapchain
	frames     []Frame
	generation uuid.UUID

	previousFrameEnd Future
	imagesInFlight   []Future

	recreate bool
	state    State
}

// NewLoop builds the first swapchain and its frames. An error here is fatal. If the
// surface has no area yet, building is left to the first Step.
func NewLoop(device Device, options Options) (*Loop, error) {
	if options.Logger == nil {
		options.Logger = logrus.StandardLogger()
	}
	if options.PauseInterval <= 0 {
		options.PauseInterval = 16 * time.Millisecond
	}

	loop := &Loop{
		device:           device,
		options:          options,
		log:              options.Logger,
		desired:          core1_0.Extent2D{Width: options.Width, Height: options.Height},
		previousFrameEnd: Ready(),
	}

	err := loop.Recreate()
	if err != nil {
		return nil, err
	}

	return loop, nil
}

func (l *Loop) State() State {
	return l.state
}

func (l *Loop) Swapchain() Swapchain {
	return l.swapchain
}

func (l *Loop) Frames() []Frame {
	return l.frames
}

func (l *Loop) NeedsRecreate() bool {
	return l.recreate
}

// PreviousFrameEnd is the completion handle of the last frame that was fully queued.
// It is never nil.
func (l *Loop) PreviousFrameEnd() Future {
	return l.previousFrameEnd
}

// Resize records a new desired extent and rebuilds the swapchain on the next step
func (l *Loop) Resize(width, height int) {
	l.desired = core1_0.Extent2D{Width: width, Height: height}
	l.recreate = true
	l.state = StateNeedsRecreate
}

// Recreate replaces the swapchain and every per-image resource. Any error leaves
// the loop unusable.
func (l *Loop) Recreate() error {
	support, err := l.device.QuerySupport()
	if err != nil {
		return errors.Wrap(err, "recreate: query surface support")
	}

	settings, err := swapchain.Negotiate(support, l.desired)
	if err != nil {
		return errors.Wrap(err, "recreate")
	}

	// A minimized surface reports a zero extent, which no swapchain can have. Keep
	// the current resources and try again on the next step.
	if settings.Extent.Width == 0 || settings.Extent.Height == 0 {
		l.log.WithField("extent", settings.Extent).Debug("recreate: surface has no area, waiting")
		l.recreate = true
		l.state = StateNeedsRecreate
		return nil
	}

	err = l.device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "recreate: wait for device idle")
	}

	l.previousFrameEnd.CleanupFinished()
	for _, f := range l.imagesInFlight {
		f.CleanupFinished()
	}

	if len(l.frames) > 0 {
		l.device.DestroyFrames(l.frames)
		l.frames = nil
	}

	old := l.swapchain
	sc, err := l.device.CreateSwapchain(settings, old)
	if err != nil {
		return errors.Wrap(err, "recreate: build swapchain")
	}
	if old != nil {
		l.device.DestroySwapchain(old)
	}
	l.swapchain = sc

	frames, err := l.device.BuildFrames(sc)
	if err != nil {
		return errors.Wrap(err, "recreate: build frames")
	}
	if len(frames) != sc.ImageCount() {
		l.device.DestroyFrames(frames)
		return errors.Newf("recreate: built %d frames for %d swapchain images", len(frames), sc.ImageCount())
	}
	l.frames = frames

	l.imagesInFlight = make([]Future, len(frames))
	for i := range l.imagesInFlight {
		l.imagesInFlight[i] = Ready()
	}
	l.previousFrameEnd = Ready()

	l.generation = uuid.New()
	l.recreate = false
	l.state = StateIdle

	l.log.WithFields(logrus.Fields{
		"swapchain":   l.generation,
		"extent":      settings.Extent,
		"format":      settings.SurfaceFormat.Format,
		"presentMode": settings.PresentMode,
		"images":      len(frames),
	}).Info("swapchain created")

	return nil
}

func (l *Loop) frameLog(imageIndex int) logrus.FieldLogger {
	return l.log.WithFields(logrus.Fields{
		"swapchain": l.generation,
		"image":     imageIndex,
	})
}

// Step runs one iteration of acquire, submit and present. Only swapchain
// construction failures, unexpected acquire failures and ctx cancellation are
// returned; a frame that fails to submit or present is dropped.
func (l *Loop) Step(ctx context.Context) (Outcome, error) {
	l.previousFrameEnd.CleanupFinished()

	var outcome Outcome
	if l.recreate || l.swapchain == nil {
		l.state = StateNeedsRecreate
		err := l.Recreate()
		if err != nil {
			return outcome, err
		}
		if l.recreate {
			outcome.State = l.state
			return outcome, nil
		}
		outcome.Recreated = true
	}

	l.state = StateAcquiring
	acquired, err := l.device.AcquireNextImage(l.swapchain)
	if swapchain.IsOutOfDate(err) {
		l.log.WithField("swapchain", l.generation).Debug("acquire: swapchain out of date")
		l.recreate = true
		l.state = StateNeedsRecreate
		outcome.State = l.state
		return outcome, nil
	} else if err != nil {
		l.state = StateIdle
		return outcome, errors.Wrap(err, "acquire next image")
	}

	imageIndex := acquired.ImageIndex
	outcome.ImageIndex = imageIndex
	if imageIndex < 0 || imageIndex >= len(l.frames) {
		l.device.Abandon(acquired)
		l.state = StateIdle
		return outcome, errors.Newf("acquire next image: index %d out of range for %d images", imageIndex, len(l.frames))
	}
	if acquired.Suboptimal {
		l.recreate = true
	}

	ready := acquired.Ready
	if ready == nil {
		ready = Ready()
	}

	l.state = StateSubmitting
	// The command buffer for this image may still be executing from its last use
	err = l.imagesInFlight[imageIndex].Wait(ctx)
	if err != nil {
		l.device.Abandon(acquired)
		l.state = StateIdle
		return outcome, errors.Wrapf(err, "wait for image %d", imageIndex)
	}

	submitted, err := l.device.Submit(ctx, Join(l.previousFrameEnd, ready), l.frames[imageIndex])
	if err != nil {
		l.dropFrame(imageIndex, "submit", err)
		outcome.State = l.state
		return outcome, nil
	}
	outcome.Submitted = true
	l.imagesInFlight[imageIndex] = submitted

	l.state = StatePresenting
	presented, err := l.device.Present(submitted, l.swapchain, imageIndex)
	if err != nil {
		l.dropFrame(imageIndex, "present", err)
		outcome.State = l.state
		return outcome, nil
	}

	flushed, err := l.device.Flush(presented)
	if err != nil {
		l.dropFrame(imageIndex, "flush", err)
		outcome.State = l.state
		return outcome, nil
	}

	outcome.Presented = true
	l.previousFrameEnd = flushed
	l.imagesInFlight[imageIndex] = flushed

	l.state = StateIdle
	if l.recreate {
		l.state = StateNeedsRecreate
	}
	outcome.State = l.state
	return outcome, nil
}

// dropFrame abandons the current frame. The previous frame end is replaced by a
// placeholder so the next step never waits on a chain that was never queued.
func (l *Loop) dropFrame(imageIndex int, stage string, err error) {
	l.previousFrameEnd = Ready()

	if swapchain.IsOutOfDate(err) {
		l.frameLog(imageIndex).Debugf("%s: swapchain out of date", stage)
		l.recreate = true
		l.state = StateNeedsRecreate
		return
	}

	l.frameLog(imageIndex).WithError(err).Errorf("%s failed, dropping frame", stage)
	l.state = StateIdle
	if l.recreate {
		l.state = StateNeedsRecreate
	}
}

// Close waits for the device to go idle and destroys the frames and swapchain
func (l *Loop) Close() error {
	err := l.device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "close: wait for device idle")
	}

	l.previousFrameEnd.CleanupFinished()
	for _, f := range l.imagesInFlight {
		f.CleanupFinished()
	}
	l.previousFrameEnd = Ready()
	l.imagesInFlight = nil

	if len(l.frames) > 0 {
		l.device.DestroyFrames(l.frames)
		l.frames = nil
	}

	if l.swapchain != nil {
		l.device.DestroySwapchain(l.swapchain)
		l.swapchain = nil
	}

	l.state = StateIdle
	return nil
}
