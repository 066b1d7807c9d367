package present_test

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/triangle/present"
	"github.com/vkngwrapper/triangle/swapchain"
)

type fakeFuture struct {
	name     string
	done     bool
	waits    int
	cleanups int
	// completes on the first Wait when set
	completeOnWait bool
}

func (f *fakeFuture) Done() bool {
	return f.done
}

func (f *fakeFuture) Wait(ctx context.Context) error {
	f.waits++
	if f.done {
		return nil
	}
	if f.completeOnWait {
		f.done = true
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeFuture) CleanupFinished() {
	f.cleanups++
}

type fakeSwapchain struct {
	id         int
	settings   swapchain.Settings
	imageCount int
	old        present.Swapchain
	destroyed  bool
}

func (s *fakeSwapchain) Settings() swapchain.Settings { return s.settings }
func (s *fakeSwapchain) ImageCount() int { return s.imageCount }

type fakeFrame struct {
	swapchain *fakeSwapchain
	index     int
	destroyed bool
}

func (f *fakeFrame) ImageIndex() int { return f.index }

type acquireResult struct {
	index      int
	suboptimal bool
	err        error
}

type submission struct {
	frame  *fakeFrame
	waitOn present.Future
	future *fakeFuture
}

// fakeDevice plays back scripted acquire/submit/present results. Anything not
// scripted succeeds, and acquire cycles through the images.
type fakeDevice struct {
	support    swapchain.Support
	imageCount int
	// overrides the number of frames BuildFrames returns when non-zero
	frameCount int

	acquireResults []acquireResult
	submitErrors   []error
	presentErrors  []error
	flushErrors    []error
	supportErr     error
	createErr      error

	swapchains  []*fakeSwapchain
	frames      [][]*fakeFrame
	acquires    int
	nextImage   int
	submissions []submission
	presents    []int
	waitIdles   int
	// futures handed out by acquire, in order
	acquireFutures []*fakeFuture
	abandoned      []present.Acquired
	// set on submit futures so tests can hold work "in flight"
	keepSubmitsPending bool
}

func newFakeDevice(imageCount int) *fakeDevice {
	return &fakeDevice{
		imageCount: imageCount,
		support: swapchain.Support{
			Capabilities: &khr_surface.SurfaceCapabilities{
				MinImageCount:  imageCount - 1,
				MaxImageCount:  imageCount,
				CurrentExtent:  core1_0.Extent2D{Width: swapchain.UndefinedExtent, Height: swapchain.UndefinedExtent},
				MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []khr_surface.SurfaceFormat{
				{Format: swapchain.PreferredSurfaceFormat, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
			},
			PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO},
		},
	}
}

func (d *fakeDevice) QuerySupport() (swapchain.Support, error) {
	return d.support, d.supportErr
}

func (d *fakeDevice) CreateSwapchain(settings swapchain.Settings, old present.Swapchain) (present.Swapchain, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}

	sc := &fakeSwapchain{
		id:         len(d.swapchains),
		settings:   settings,
		imageCount: d.imageCount,
		old:        old,
	}
	d.swapchains = append(d.swapchains, sc)
	d.nextImage = 0
	return sc, nil
}

func (d *fakeDevice) DestroySwapchain(sc present.Swapchain) {
	sc.(*fakeSwapchain).destroyed = true
}

func (d *fakeDevice) BuildFrames(sc present.Swapchain) ([]present.Frame, error) {
	count := sc.ImageCount()
	if d.frameCount > 0 {
		count = d.frameCount
	}

	var built []*fakeFrame
	var frames []present.Frame
	for i := 0; i < count; i++ {
		frame := &fakeFrame{swapchain: sc.(*fakeSwapchain), index: i}
		built = append(built, frame)
		frames = append(frames, frame)
	}
	d.frames = append(d.frames, built)
	return frames, nil
}

func (d *fakeDevice) DestroyFrames(frames []present.Frame) {
	for _, frame := range frames {
		frame.(*fakeFrame).destroyed = true
	}
}

func (d *fakeDevice) AcquireNextImage(sc present.Swapchain) (present.Acquired, error) {
	d.acquires++

	result := acquireResult{index: d.nextImage}
	if len(d.acquireResults) > 0 {
		result = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
	}
	if result.err != nil {
		return present.Acquired{}, result.err
	}

	d.nextImage = (result.index + 1) % sc.ImageCount()
	ready := &fakeFuture{name: "acquire", done: true}
	d.acquireFutures = append(d.acquireFutures, ready)
	return present.Acquired{ImageIndex: result.index, Suboptimal: result.suboptimal, Ready: ready}, nil
}

func (d *fakeDevice) Abandon(acquired present.Acquired) {
	d.abandoned = append(d.abandoned, acquired)
}

func popError(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (d *fakeDevice) Submit(ctx context.Context, waitOn present.Future, frame present.Frame) (present.Future, error) {
	err := popError(&d.submitErrors)
	if err != nil {
		return nil, err
	}

	future := &fakeFuture{name: "submit", done: !d.keepSubmitsPending, completeOnWait: true}
	d.submissions = append(d.submissions, submission{frame: frame.(*fakeFrame), waitOn: waitOn, future: future})
	return future, nil
}

func (d *fakeDevice) Present(after present.Future, sc present.Swapchain, imageIndex int) (present.Future, error) {
	err := popError(&d.presentErrors)
	if err != nil {
		return nil, err
	}

	d.presents = append(d.presents, imageIndex)
	return after, nil
}

func (d *fakeDevice) Flush(f present.Future) (present.Future, error) {
	err := popError(&d.flushErrors)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *fakeDevice) WaitIdle() error {
	d.waitIdles++
	return nil
}

func outOfDate(stage string) error {
	return errors.Wrap(swapchain.ErrOutOfDate, stage)
}

type fakeEvents struct {
	// one batch is handed out per loop iteration
	batches [][]present.Event
	current []present.Event
	polls   int
}

func newFakeEvents(batches ...[]present.Event) *fakeEvents {
	events := &fakeEvents{}
	if len(batches) > 0 {
		events.current = batches[0]
		events.batches = batches[1:]
	}
	return events
}

func (e *fakeEvents) PollEvent() (present.Event, bool) {
	e.polls++
	if len(e.current) > 0 {
		event := e.current[0]
		e.current = e.current[1:]
		return event, true
	}

	// An empty poll ends the batch; queue up the next one for the following iteration
	if len(e.batches) > 0 {
		e.current = e.batches[0]
		e.batches = e.batches[1:]
	}
	return present.Event{}, false
}
