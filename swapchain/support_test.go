package swapchain_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/triangle/swapchain"
)

func undefinedExtentCaps(min, max core1_0.Extent2D) *khr_surface.SurfaceCapabilities {
	return &khr_surface.SurfaceCapabilities{
		MinImageCount:  2,
		MaxImageCount:  8,
		CurrentExtent:  core1_0.Extent2D{Width: swapchain.UndefinedExtent, Height: swapchain.UndefinedExtent},
		MinImageExtent: min,
		MaxImageExtent: max,
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := khr_surface.SurfaceFormat{
		Format:     swapchain.PreferredSurfaceFormat,
		ColorSpace: khr_surface.ColorSpaceSRGBNonlinear,
	}
	srgb := khr_surface.SurfaceFormat{
		Format:     core1_0.FormatB8G8R8A8SRGB,
		ColorSpace: khr_surface.ColorSpaceSRGBNonlinear,
	}
	rgba := khr_surface.SurfaceFormat{
		Format:     core1_0.FormatR8G8B8A8SRGB,
		ColorSpace: khr_surface.ColorSpaceSRGBNonlinear,
	}

	testCases := []struct {
		name     string
		formats  []khr_surface.SurfaceFormat
		expected khr_surface.SurfaceFormat
	}{
		{name: "OnlyPreferred", formats: []khr_surface.SurfaceFormat{preferred}, expected: preferred},
		{name: "PreferredLast", formats: []khr_surface.SurfaceFormat{srgb, rgba, preferred}, expected: preferred},
		{name: "PreferredFirst", formats: []khr_surface.SurfaceFormat{preferred, srgb}, expected: preferred},
		{name: "FallbackToFirst", formats: []khr_surface.SurfaceFormat{rgba, srgb}, expected: rgba},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, swapchain.ChooseSurfaceFormat(tc.formats))
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	mailbox := khr_surface.PresentModeMailbox
	immediate := khr_surface.PresentModeImmediate
	fifo := khr_surface.PresentModeFIFO

	testCases := []struct {
		name     string
		modes    []khr_surface.PresentMode
		expected khr_surface.PresentMode
	}{
		{name: "All", modes: []khr_surface.PresentMode{fifo, immediate, mailbox}, expected: mailbox},
		{name: "MailboxAndFIFO", modes: []khr_surface.PresentMode{fifo, mailbox}, expected: mailbox},
		{name: "MailboxAndImmediate", modes: []khr_surface.PresentMode{immediate, mailbox}, expected: mailbox},
		{name: "ImmediateAndFIFO", modes: []khr_surface.PresentMode{fifo, immediate}, expected: immediate},
		{name: "ImmediateOnly", modes: []khr_surface.PresentMode{immediate}, expected: immediate},
		{name: "FIFOOnly", modes: []khr_surface.PresentMode{fifo}, expected: fifo},
		{name: "NothingReported", modes: nil, expected: fifo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, swapchain.ChoosePresentMode(tc.modes))
		})
	}
}

func TestChooseExtent_CurrentExtentDefined(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: 800, Height: 600},
		MinImageExtent: core1_0.Extent2D{Width: 1024, Height: 1024},
		MaxImageExtent: core1_0.Extent2D{Width: 2048, Height: 2048},
	}

	// Returned unchanged, even outside the min/max bounds
	extent := swapchain.ChooseExtent(caps, core1_0.Extent2D{Width: 1920, Height: 1080})
	require.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, extent)
}

func TestChooseExtent_Clamped(t *testing.T) {
	min := core1_0.Extent2D{Width: 640, Height: 480}
	max := core1_0.Extent2D{Width: 1920, Height: 1080}

	testCases := []struct {
		name     string
		desired  core1_0.Extent2D
		expected core1_0.Extent2D
	}{
		{name: "InBounds", desired: core1_0.Extent2D{Width: 1024, Height: 768}, expected: core1_0.Extent2D{Width: 1024, Height: 768}},
		{name: "TooSmall", desired: core1_0.Extent2D{Width: 100, Height: 100}, expected: min},
		{name: "TooLarge", desired: core1_0.Extent2D{Width: 4000, Height: 3000}, expected: max},
		{name: "WidthLowHeightHigh", desired: core1_0.Extent2D{Width: 10, Height: 5000}, expected: core1_0.Extent2D{Width: 640, Height: 1080}},
		{name: "WidthHighHeightLow", desired: core1_0.Extent2D{Width: 5000, Height: 10}, expected: core1_0.Extent2D{Width: 1920, Height: 480}},
		{name: "OnBounds", desired: max, expected: max},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, swapchain.ChooseExtent(undefinedExtentCaps(min, max), tc.desired))
		})
	}
}

func TestChooseImageCount(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 0}
	require.Equal(t, 3, swapchain.ChooseImageCount(caps))

	caps.MaxImageCount = 8
	require.Equal(t, 3, swapchain.ChooseImageCount(caps))

	caps.MaxImageCount = 2
	require.Equal(t, 2, swapchain.ChooseImageCount(caps))
}

func TestNegotiate(t *testing.T) {
	caps := undefinedExtentCaps(core1_0.Extent2D{Width: 640, Height: 480}, core1_0.Extent2D{Width: 1920, Height: 1080})

	settings, err := swapchain.Negotiate(swapchain.Support{
		Capabilities: caps,
		Formats: []khr_surface.SurfaceFormat{
			{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeImmediate},
	}, core1_0.Extent2D{Width: 1024, Height: 768})
	require.NoError(t, err)

	require.Equal(t, core1_0.FormatR8G8B8A8SRGB, settings.SurfaceFormat.Format)
	require.Equal(t, khr_surface.PresentModeImmediate, settings.PresentMode)
	require.Equal(t, core1_0.Extent2D{Width: 1024, Height: 768}, settings.Extent)
	require.Equal(t, 3, settings.ImageCount)
	require.Equal(t, caps.CurrentTransform, settings.PreTransform)
}

func TestNegotiate_NoFormats(t *testing.T) {
	_, err := swapchain.Negotiate(swapchain.Support{
		Capabilities: &khr_surface.SurfaceCapabilities{MinImageCount: 2},
		PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO},
	}, core1_0.Extent2D{Width: 800, Height: 600})
	require.ErrorIs(t, err, swapchain.ErrNoSurfaceFormats)
}

func TestNegotiate_NoCapabilities(t *testing.T) {
	_, err := swapchain.Negotiate(swapchain.Support{
		Formats: []khr_surface.SurfaceFormat{{Format: swapchain.PreferredSurfaceFormat}},
	}, core1_0.Extent2D{Width: 800, Height: 600})
	require.Error(t, err)
}
