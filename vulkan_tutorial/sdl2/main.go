// Command sdl2 draws a triangle into an SDL2 window through Vulkan.
//
// The shaders are compiled to SPIR-V with glslc before the first run:
//
//	go generate ./vulkan_tutorial/sdl2
//
// and are read at startup from TRIANGLE_SHADER_DIR, which defaults to ./shaders
// relative to the working directory. Run from vulkan_tutorial/sdl2 or point
// TRIANGLE_SHADER_DIR at the generated files.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/triangle/config"
	"github.com/vkngwrapper/triangle/present"
)

type HelloTriangleApplication struct {
	config config.Configuration
	log    logrus.FieldLogger

	window *sdl.Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver      ext_debug_utils.ExtensionDriver
	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	queueFamilies  QueueFamilyIndices

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	swapchainExtension khr_swapchain.ExtensionDriver

	commandPool core1_0.CommandPool
	shaders     *shaderModules

	renderer *renderer
	loop     *present.Loop
}

func (app *HelloTriangleApplication) Run(ctx context.Context) error {
	err := app.initWindow()
	if err != nil {
		return err
	}
	defer app.cleanup()

	err = app.initVulkan()
	if err != nil {
		return err
	}

	return app.mainLoop(ctx)
}

func (app *HelloTriangleApplication) initWindow() error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return errors.Wrap(err, "init sdl")
	}

	window, err := sdl.CreateWindow(app.config.Window.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(app.config.Window.Width), int32(app.config.Window.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return errors.Wrap(err, "create window")
	}
	app.window = window

	app.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return errors.Wrap(err, "load vulkan")
	}

	return nil
}

func (app *HelloTriangleApplication) initVulkan() error {
	err := app.createInstance()
	if err != nil {
		return err
	}

	err = app.setupDebugMessenger()
	if err != nil {
		return err
	}

	err = app.createSurface()
	if err != nil {
		return err
	}

	err = app.pickPhysicalDevice()
	if err != nil {
		return err
	}

	err = app.createLogicalDevice()
	if err != nil {
		return err
	}

	err = app.createCommandPool()
	if err != nil {
		return err
	}

	app.shaders, err = loadShaderModules(app.deviceDriver, app.config.Renderer.ShaderDirectory)
	if err != nil {
		return err
	}

	app.renderer = &renderer{
		log:             app.log,
		deviceDriver:    app.deviceDriver,
		surfaceDriver:   app.surfaceExtension,
		swapchainDriver: app.swapchainExtension,
		physicalDevice:  app.physicalDevice,
		surface:         app.surface,
		queueFamilies:   app.queueFamilies,
		graphicsQueue:   app.graphicsQueue,
		presentQueue:    app.presentQueue,
		commandPool:     app.commandPool,
		shaders:         app.shaders,
		clearColor:      app.config.Renderer.ClearColor,
		sync:            newSyncPool(app.deviceDriver, app.log),
	}

	w, h := app.window.VulkanGetDrawableSize()
	app.loop, err = present.NewLoop(app.renderer, present.Options{
		Width:         int(w),
		Height:        int(h),
		PauseInterval: app.config.Renderer.PauseInterval,
		StatsInterval: app.config.Renderer.StatsInterval,
		Logger:        app.log,
	})
	return err
}

func (app *HelloTriangleApplication) mainLoop(ctx context.Context) error {
	events, err := newSDLEvents(app.window)
	if err != nil {
		return errors.Wrap(err, "get window id")
	}

	err = app.loop.Run(ctx, events, events.windowID)
	if errors.Is(err, context.Canceled) {
		app.log.Info("interrupted")
		return nil
	}
	return err
}

func (app *HelloTriangleApplication) cleanup() {
	if app.loop != nil {
		err := app.loop.Close()
		if err != nil {
			app.log.WithError(err).Error("close presentation loop")
		}
	}

	if app.renderer != nil {
		app.renderer.destroy()
	}

	if app.shaders != nil {
		app.shaders.destroy(app.deviceDriver)
	}

	if app.commandPool.Initialized() {
		app.deviceDriver.DestroyCommandPool(app.commandPool, nil)
	}

	if app.deviceDriver != nil {
		app.deviceDriver.DestroyDevice(nil)
	}

	if app.debugMessenger.Initialized() {
		app.debugDriver.DestroyDebugUtilsMessenger(app.debugMessenger, nil)
	}

	if app.surface.Initialized() {
		app.surfaceExtension.DestroySurface(app.surface, nil)
	}

	if app.instanceDriver != nil {
		app.instanceDriver.DestroyInstance(nil)
	}

	if app.window != nil {
		app.window.Destroy()
	}
	sdl.Quit()
}

func main() {
	runtime.LockOSThread()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("%+v\n", err)
	}

	log := logrus.New()
	log.SetLevel(cfg.LogLevel)

	app := &HelloTriangleApplication{
		config: cfg,
		log:    log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = app.Run(ctx)
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
