package swapchain

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// PreferredSurfaceFormat is picked whenever the surface offers it in the sRGB nonlinear color space
const PreferredSurfaceFormat = core1_0.FormatB8G8R8A8UnsignedNormalized

// UndefinedExtent is the CurrentExtent width a surface reports when the swapchain decides its own size
const UndefinedExtent = -1

// Support is everything the surface reports about what swapchains it can accept
type Support struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

// Settings is the negotiated configuration used to build one swapchain
type Settings struct {
	SurfaceFormat khr_surface.SurfaceFormat
	PresentMode   khr_surface.PresentMode
	Extent        core1_0.Extent2D
	ImageCount    int
	PreTransform  khr_surface.SurfaceTransformFlags
}

func ChooseSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == PreferredSurfaceFormat && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

// ChoosePresentMode prefers mailbox, then immediate. FIFO is always supported.
func ChoosePresentMode(availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	var immediate bool
	for _, presentMode := range availablePresentModes {
		switch presentMode {
		case khr_surface.PresentModeMailbox:
			return presentMode
		case khr_surface.PresentModeImmediate:
			immediate = true
		}
	}

	if immediate {
		return khr_surface.PresentModeImmediate
	}
	return khr_surface.PresentModeFIFO
}

func ChooseExtent(capabilities *khr_surface.SurfaceCapabilities, desired core1_0.Extent2D) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != UndefinedExtent {
		return capabilities.CurrentExtent
	}

	width := desired.Width
	height := desired.Height

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}

// ChooseImageCount asks for one image more than the minimum. A MaxImageCount of 0 means no limit.
func ChooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}

	return imageCount
}

// Negotiate picks the settings for a new swapchain. Errors returned here cannot be recovered from.
func Negotiate(support Support, desired core1_0.Extent2D) (Settings, error) {
	if support.Capabilities == nil {
		return Settings{}, errors.New("negotiate: surface reported no capabilities")
	}
	if len(support.Formats) == 0 {
		return Settings{}, errors.WithStack(ErrNoSurfaceFormats)
	}

	return Settings{
		SurfaceFormat: ChooseSurfaceFormat(support.Formats),
		PresentMode:   ChoosePresentMode(support.PresentModes),
		Extent:        ChooseExtent(support.Capabilities, desired),
		ImageCount:    ChooseImageCount(support.Capabilities),
		PreTransform:  support.Capabilities.CurrentTransform,
	}, nil
}
