package main

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/triangle/present"
	"github.com/vkngwrapper/triangle/swapchain"
)

type vkSwapchain struct {
	handle   khr_swapchain.Swapchain
	images   []core1_0.Image
	settings swapchain.Settings
}

func (s *vkSwapchain) Settings() swapchain.Settings { return s.settings }
func (s *vkSwapchain) ImageCount() int { return len(s.images) }

// frameSet holds what every frame of one swapchain shares
type frameSet struct {
	renderPass     core1_0.RenderPass
	pipelineLayout core1_0.PipelineLayout
	pipeline       core1_0.Pipeline
}

type vkFrame struct {
	set   *frameSet
	index int

	imageView      core1_0.ImageView
	framebuffer    core1_0.Framebuffer
	commandBuffer  core1_0.CommandBuffer
	renderFinished core1_0.Semaphore
}

func (f *vkFrame) ImageIndex() int { return f.index }

// renderer implements present.Device on top of a logical device and a window surface
type renderer struct {
	log logrus.FieldLogger

	deviceDriver    core1_0.DeviceDriver
	surfaceDriver   khr_surface.ExtensionDriver
	swapchainDriver khr_swapchain.ExtensionDriver
	physicalDevice  core1_0.PhysicalDevice
	surface         khr_surface.Surface
	queueFamilies   QueueFamilyIndices
	graphicsQueue   core1_0.Queue
	presentQueue    core1_0.Queue
	commandPool     core1_0.CommandPool
	shaders         *shaderModules
	clearColor      mgl32.Vec4

	sync *syncPool
}

func (r *renderer) QuerySupport() (swapchain.Support, error) {
	details, err := querySwapChainSupport(r.surfaceDriver, r.surface, r.physicalDevice)
	if err != nil {
		return swapchain.Support{}, errors.Wrap(err, "query surface support")
	}
	return details, nil
}

func (r *renderer) CreateSwapchain(settings swapchain.Settings, old present.Swapchain) (present.Swapchain, error) {
	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	if *r.queueFamilies.GraphicsFamily != *r.queueFamilies.PresentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *r.queueFamilies.GraphicsFamily, *r.queueFamilies.PresentFamily)
	}

	var oldHandle khr_swapchain.Swapchain
	if old != nil {
		oldHandle = old.(*vkSwapchain).handle
	}

	handle, _, err := r.swapchainDriver.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: r.surface,

		MinImageCount:    settings.ImageCount,
		ImageFormat:      settings.SurfaceFormat.Format,
		ImageColorSpace:  settings.SurfaceFormat.ColorSpace,
		ImageExtent:      settings.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   settings.PreTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    settings.PresentMode,
		Clipped:        true,
		OldSwapchain:   oldHandle,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	images, _, err := r.swapchainDriver.GetSwapchainImages(handle)
	if err != nil {
		r.swapchainDriver.DestroySwapchain(handle, nil)
		return nil, errors.Wrap(err, "get swapchain images")
	}

	return &vkSwapchain{handle: handle, images: images, settings: settings}, nil
}

func (r *renderer) DestroySwapchain(sc present.Swapchain) {
	r.swapchainDriver.DestroySwapchain(sc.(*vkSwapchain).handle, nil)
}

func (r *renderer) BuildFrames(sc present.Swapchain) ([]present.Frame, error) {
	vsc := sc.(*vkSwapchain)
	settings := vsc.settings

	set := &frameSet{}
	var built []*vkFrame
	var buffers []core1_0.CommandBuffer
	fail := func(err error) ([]present.Frame, error) {
		// buffers not yet handed to a frame are freed here, the rest by destroyFrames
		if len(buffers) > len(built) {
			r.deviceDriver.FreeCommandBuffers(buffers[len(built):]...)
		}
		r.destroyFrames(built, set)
		return nil, err
	}

	var err error
	set.renderPass, err = r.createRenderPass(settings.SurfaceFormat.Format)
	if err != nil {
		return fail(err)
	}

	set.pipelineLayout, set.pipeline, err = r.createGraphicsPipeline(set.renderPass, settings.Extent)
	if err != nil {
		return fail(err)
	}

	buffers, _, err = r.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: len(vsc.images),
	})
	if err != nil {
		return fail(errors.Wrap(err, "allocate command buffers"))
	}

	for index, image := range vsc.images {
		frame := &vkFrame{set: set, index: index, commandBuffer: buffers[index]}
		built = append(built, frame)

		frame.imageView, _, err = r.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   settings.SurfaceFormat.Format,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			return fail(errors.Wrapf(err, "create image view %d", index))
		}

		frame.framebuffer, _, err = r.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  set.renderPass,
			Layers:      1,
			Attachments: []core1_0.ImageView{frame.imageView},
			Width:       settings.Extent.Width,
			Height:      settings.Extent.Height,
		})
		if err != nil {
			return fail(errors.Wrapf(err, "create framebuffer %d", index))
		}

		frame.renderFinished, _, err = r.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return fail(errors.Wrapf(err, "create render finished semaphore %d", index))
		}

		err = r.recordCommandBuffer(frame, settings.Extent)
		if err != nil {
			return fail(errors.Wrapf(err, "record command buffer %d", index))
		}
	}

	frames := make([]present.Frame, 0, len(built))
	for _, frame := range built {
		frames = append(frames, frame)
	}

	r.log.WithFields(logrus.Fields{
		"frames": len(frames),
		"width":  settings.Extent.Width,
		"height": settings.Extent.Height,
	}).Debug("frames recorded")
	return frames, nil
}

func (r *renderer) recordCommandBuffer(frame *vkFrame, extent core1_0.Extent2D) error {
	buffer := frame.commandBuffer

	_, err := r.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return err
	}

	err = r.deviceDriver.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  frame.set.renderPass,
			Framebuffer: frame.framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{r.clearColor.X(), r.clearColor.Y(), r.clearColor.Z(), r.clearColor.W()},
			},
		})
	if err != nil {
		return err
	}

	r.deviceDriver.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, frame.set.pipeline)
	// The vertices live in the vertex shader
	r.deviceDriver.CmdDraw(buffer, 3, 1, 0, 0)
	r.deviceDriver.CmdEndRenderPass(buffer)

	_, err = r.deviceDriver.EndCommandBuffer(buffer)
	return err
}

func (r *renderer) DestroyFrames(frames []present.Frame) {
	if len(frames) == 0 {
		return
	}

	var built []*vkFrame
	for _, frame := range frames {
		built = append(built, frame.(*vkFrame))
	}
	r.destroyFrames(built, built[0].set)
}

func (r *renderer) destroyFrames(frames []*vkFrame, set *frameSet) {
	var buffers []core1_0.CommandBuffer
	for _, frame := range frames {
		if frame.renderFinished.Initialized() {
			r.deviceDriver.DestroySemaphore(frame.renderFinished, nil)
		}
		if frame.framebuffer.Initialized() {
			r.deviceDriver.DestroyFramebuffer(frame.framebuffer, nil)
		}
		if frame.imageView.Initialized() {
			r.deviceDriver.DestroyImageView(frame.imageView, nil)
		}
		buffers = append(buffers, frame.commandBuffer)
	}

	if len(buffers) > 0 {
		r.deviceDriver.FreeCommandBuffers(buffers...)
	}

	if set.pipeline.Initialized() {
		r.deviceDriver.DestroyPipeline(set.pipeline, nil)
	}
	if set.pipelineLayout.Initialized() {
		r.deviceDriver.DestroyPipelineLayout(set.pipelineLayout, nil)
	}
	if set.renderPass.Initialized() {
		r.deviceDriver.DestroyRenderPass(set.renderPass, nil)
	}
}

func (r *renderer) AcquireNextImage(sc present.Swapchain) (present.Acquired, error) {
	semaphore, err := r.sync.semaphore()
	if err != nil {
		return present.Acquired{}, err
	}

	imageIndex, res, err := r.swapchainDriver.AcquireNextImage(sc.(*vkSwapchain).handle, common.NoTimeout, &semaphore, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		r.sync.releaseSemaphore(semaphore)
		return present.Acquired{}, errors.Wrap(swapchain.ErrOutOfDate, "acquire next image")
	} else if err != nil {
		r.sync.orphan(semaphore)
		return present.Acquired{}, errors.Wrap(err, "acquire next image")
	}

	return present.Acquired{
		ImageIndex: imageIndex,
		Suboptimal: res == khr_swapchain.VKSuboptimal,
		Ready:      &acquireFuture{pool: r.sync, semaphore: semaphore},
	}, nil
}

// Abandon parks the semaphore of an image that will never be submitted. The
// presentation engine may still signal it, so it is destroyed once the device is idle.
func (r *renderer) Abandon(acquired present.Acquired) {
	abandoned := &submission{signaled: true, retired: true}
	for _, acquire := range pendingAcquires(acquired.Ready) {
		r.sync.orphan(acquire.semaphore)
		acquire.consumer = abandoned
	}
}

// pendingAcquires returns the acquire semaphores in f no submission has waited on yet
func pendingAcquires(f present.Future) []*acquireFuture {
	var acquires []*acquireFuture
	for _, part := range present.Parts(f) {
		acquire, ok := part.(*acquireFuture)
		if ok && acquire.consumer == nil {
			acquires = append(acquires, acquire)
		}
	}
	return acquires
}

func (r *renderer) submit(ctx context.Context, waitOn present.Future, commandBuffers []core1_0.CommandBuffer, signal core1_0.Semaphore) (*submitFuture, error) {
	acquires := pendingAcquires(waitOn)

	var waitSemaphores []core1_0.Semaphore
	var waitStages []core1_0.PipelineStageFlags
	for _, acquire := range acquires {
		waitSemaphores = append(waitSemaphores, acquire.semaphore)
		waitStages = append(waitStages, core1_0.PipelineStageColorAttachmentOutput)
	}

	orphanAcquires := func() {
		r.sync.orphan(waitSemaphores...)
		abandoned := &submission{signaled: true, retired: true}
		for _, acquire := range acquires {
			acquire.consumer = abandoned
		}
	}

	if err := ctx.Err(); err != nil {
		orphanAcquires()
		return nil, err
	}

	fence, err := r.sync.fence()
	if err != nil {
		orphanAcquires()
		return nil, err
	}

	info := core1_0.SubmitInfo{
		WaitSemaphores:   waitSemaphores,
		WaitDstStageMask: waitStages,
		CommandBuffers:   commandBuffers,
	}
	if signal.Initialized() {
		info.SignalSemaphores = []core1_0.Semaphore{signal}
	}

	_, err = r.deviceDriver.QueueSubmit(r.graphicsQueue, &fence, info)
	if err != nil {
		r.sync.releaseFence(fence)
		orphanAcquires()
		return nil, errors.Wrap(err, "queue submit")
	}

	sub := &submission{fence: fence, acquired: waitSemaphores}
	r.sync.track(sub)
	for _, acquire := range acquires {
		acquire.consumer = sub
	}

	return &submitFuture{pool: r.sync, submission: sub, renderFinished: signal}, nil
}

func (r *renderer) Submit(ctx context.Context, waitOn present.Future, frame present.Frame) (present.Future, error) {
	vkf := frame.(*vkFrame)
	return r.submit(ctx, waitOn, []core1_0.CommandBuffer{vkf.commandBuffer}, vkf.renderFinished)
}

func (r *renderer) Present(after present.Future, sc present.Swapchain, imageIndex int) (present.Future, error) {
	var waitSemaphores []core1_0.Semaphore
	for _, part := range present.Parts(after) {
		submitted, ok := part.(*submitFuture)
		if ok && submitted.renderFinished.Initialized() {
			waitSemaphores = append(waitSemaphores, submitted.renderFinished)
		}
	}

	res, err := r.swapchainDriver.QueuePresent(r.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: waitSemaphores,
		Swapchains:     []khr_swapchain.Swapchain{sc.(*vkSwapchain).handle},
		ImageIndices:   []int{imageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		return nil, errors.Wrapf(swapchain.ErrOutOfDate, "present image %d", imageIndex)
	} else if err != nil {
		return nil, errors.Wrapf(err, "present image %d", imageIndex)
	}

	return after, nil
}

// Flush submits an empty batch for any acquire nothing has waited on yet, so
// every part of the result is backed by a fence
func (r *renderer) Flush(f present.Future) (present.Future, error) {
	if len(pendingAcquires(f)) == 0 {
		return f, nil
	}

	var fenced []present.Future
	for _, part := range present.Parts(f) {
		if _, ok := part.(*acquireFuture); !ok {
			fenced = append(fenced, part)
		}
	}

	flushed, err := r.submit(context.Background(), f, nil, core1_0.Semaphore{})
	if err != nil {
		return nil, errors.Wrap(err, "flush")
	}
	return present.Join(append(fenced, flushed)...), nil
}

func (r *renderer) WaitIdle() error {
	_, err := r.deviceDriver.DeviceWaitIdle()
	if err != nil {
		return errors.Wrap(err, "wait for device idle")
	}

	r.sync.idle()
	return nil
}

func (r *renderer) destroy() {
	r.sync.destroy()
}
