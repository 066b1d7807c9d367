package present

import (
	"context"

	"github.com/vkngwrapper/triangle/swapchain"
)

// Swapchain is a set of presentable images created by a Device
type Swapchain interface {
	Settings() swapchain.Settings
	ImageCount() int
}

// Frame is the prerecorded work for one swapchain image: its framebuffer and the
// command buffer that renders into it
type Frame interface {
	ImageIndex() int
}

// Acquired describes an image handed out by AcquireNextImage
type Acquired struct {
	ImageIndex int
	// Suboptimal is set when the image can still be presented but the swapchain
	// should be rebuilt
	Suboptimal bool
	// Ready completes when the image can be rendered to
	Ready Future
}

// Device is everything the loop needs from the graphics driver. Acquire and present
// report staleness by returning an error wrapping swapchain.ErrOutOfDate.
type Device interface {
	QuerySupport() (swapchain.Support, error)
	// CreateSwapchain builds a swapchain. old is nil on the first call and is
	// otherwise retired by the new swapchain; the loop destroys it afterwards.
	CreateSwapchain(settings swapchain.Settings, old Swapchain) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
	// BuildFrames records one Frame per image of sc, ordered by image index
	BuildFrames(sc Swapchain) ([]Frame, error)
	DestroyFrames(frames []Frame)

	AcquireNextImage(sc Swapchain) (Acquired, error)
	// Abandon gives back an acquired image that will never be submitted
	Abandon(acquired Acquired)
	// Submit executes the frame's command buffer on the graphics queue once
	// everything in waitOn is done
	Submit(ctx context.Context, waitOn Future, frame Frame) (Future, error)
	// Present queues presentation of an image once after has finished rendering it
	Present(after Future, sc Swapchain, imageIndex int) (Future, error)
	// Flush makes sure the chain ending in f has been handed to the driver and
	// that f will be signaled by a fence
	Flush(f Future) (Future, error)

	WaitIdle() error
}
