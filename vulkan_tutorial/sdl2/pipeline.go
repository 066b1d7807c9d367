package main

//go:generate glslc shaders/shader.vert -o shaders/vert.spv
//go:generate glslc shaders/shader.frag -o shaders/frag.spv

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"golang.org/x/sync/errgroup"
)

type shaderModules struct {
	vertex   core1_0.ShaderModule
	fragment core1_0.ShaderModule
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

func loadShaderModule(driver core1_0.DeviceDriver, path string) (core1_0.ShaderModule, error) {
	shaderBytes, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return core1_0.ShaderModule{}, errors.WithHintf(errors.Wrapf(err, "read shader %s", path),
			"compile the shaders with `go generate` (requires glslc) or set %s", "TRIANGLE_SHADER_DIR")
	} else if err != nil {
		return core1_0.ShaderModule{}, errors.Wrapf(err, "read shader %s", path)
	}
	if len(shaderBytes) == 0 || len(shaderBytes)%4 != 0 {
		return core1_0.ShaderModule{}, errors.Newf("shader %s is not SPIR-V: %d bytes", path, len(shaderBytes))
	}

	module, _, err := driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(shaderBytes),
	})
	if err != nil {
		return core1_0.ShaderModule{}, errors.Wrapf(err, "create shader module %s", path)
	}
	return module, nil
}

// loadShaderModules reads vert.spv and frag.spv from dir
func loadShaderModules(driver core1_0.DeviceDriver, dir string) (*shaderModules, error) {
	modules := &shaderModules{}

	var group errgroup.Group
	group.Go(func() error {
		var err error
		modules.vertex, err = loadShaderModule(driver, filepath.Join(dir, "vert.spv"))
		return err
	})
	group.Go(func() error {
		var err error
		modules.fragment, err = loadShaderModule(driver, filepath.Join(dir, "frag.spv"))
		return err
	})

	err := group.Wait()
	if err != nil {
		modules.destroy(driver)
		return nil, err
	}
	return modules, nil
}

func (m *shaderModules) destroy(driver core1_0.DeviceDriver) {
	if m.vertex.Initialized() {
		driver.DestroyShaderModule(m.vertex, nil)
	}
	if m.fragment.Initialized() {
		driver.DestroyShaderModule(m.fragment, nil)
	}
}

func (r *renderer) createRenderPass(format core1_0.Format) (core1_0.RenderPass, error) {
	renderPass, _, err := r.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return core1_0.RenderPass{}, errors.Wrap(err, "create render pass")
	}

	return renderPass, nil
}

func (r *renderer) createGraphicsPipeline(renderPass core1_0.RenderPass, extent core1_0.Extent2D) (core1_0.PipelineLayout, core1_0.Pipeline, error) {
	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: r.shaders.vertex,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: r.shaders.fragment,
		Name:   "main",
	}

	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{
				X:        0,
				Y:        0,
				Width:    float32(extent.Width),
				Height:   float32(extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		},
		Scissors: []core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	pipelineLayout, _, err := r.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return core1_0.PipelineLayout{}, core1_0.Pipeline{}, errors.Wrap(err, "create pipeline layout")
	}

	pipelines, _, err := r.deviceDriver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			Layout:             pipelineLayout,
			RenderPass:         renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		r.deviceDriver.DestroyPipelineLayout(pipelineLayout, nil)
		return core1_0.PipelineLayout{}, core1_0.Pipeline{}, errors.Wrap(err, "create graphics pipeline")
	}

	return pipelineLayout, pipelines[0], nil
}
