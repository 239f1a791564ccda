// Command cmdqdemo exercises the cmdq submission pipeline end to end:
// it uploads vertex data, renders a pass, runs a compute dispatch, and
// reads the results back.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/cmdq"
	_ "github.com/gogpu/cmdq/backend/native"
	_ "github.com/gogpu/cmdq/backend/sim"
)

const vertexShader = `
@vertex
fn main(@location(0) position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, 0.0, 1.0);
}
`

const fragmentShader = `
@fragment
fn main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.5, 0.2, 1.0);
}
`

func main() {
	var (
		backendName = flag.String("backend", "", "backend to use (empty = auto-select)")
		frames      = flag.Int("frames", 3, "submissions to run")
		verbose     = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		cmdq.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	device, err := cmdq.CreateDevice(cmdq.DeviceConfig{
		ShaderFormats: cmdq.ShaderFormatWGSL,
		Debug:         true,
		Backend:       *backendName,
	})
	if err != nil {
		log.Fatalf("create device: %v", err)
	}
	defer device.Destroy()
	log.Printf("device: %s (%s, %s)", device.DeviceName(), device.BackendName(), device.DriverName())

	vertices, staging := buildTriangle(device)
	defer vertices.Release()
	defer staging.Release()

	target, err := device.CreateTexture(&cmdq.TextureDescriptor{
		Label: "offscreen",
		Width: 256, Height: 256,
		Format: cmdq.TextureFormatRGBA8Unorm,
		Usage:  cmdq.TextureUsageColorTarget,
	})
	if err != nil {
		log.Fatalf("create texture: %v", err)
	}
	defer target.Release()

	pipeline := buildPipeline(device)
	defer pipeline.Release()

	for frame := 0; frame < *frames; frame++ {
		cb, err := device.AcquireCommandBuffer()
		if err != nil {
			log.Fatalf("acquire command buffer: %v", err)
		}

		// Re-upload the vertices every frame with cycling, the way a
		// dynamic mesh would.
		cp, err := cb.BeginCopyPass()
		if err != nil {
			log.Fatalf("begin copy pass: %v", err)
		}
		if err := cp.UploadToBuffer(staging, 0, vertices, 0, vertices.Size(), true); err != nil {
			log.Fatalf("upload: %v", err)
		}
		if err := cp.End(); err != nil {
			log.Fatalf("end copy pass: %v", err)
		}

		rp, err := cb.BeginRenderPass([]cmdq.ColorTargetBinding{{
			Texture:    target,
			LoadOp:     cmdq.LoadOpClear,
			StoreOp:    cmdq.StoreOpStore,
			ClearColor: cmdq.Color{R: 0.1, G: 0.1, B: 0.15, A: 1},
			Cycle:      true,
		}}, nil)
		if err != nil {
			log.Fatalf("begin render pass: %v", err)
		}
		if err := rp.BindGraphicsPipeline(pipeline); err != nil {
			log.Fatalf("bind pipeline: %v", err)
		}
		if err := rp.BindVertexBuffers(0, []cmdq.VertexBufferBinding{{Buffer: vertices}}); err != nil {
			log.Fatalf("bind vertices: %v", err)
		}
		if err := rp.Draw(3, 1, 0, 0); err != nil {
			log.Fatalf("draw: %v", err)
		}
		if err := rp.End(); err != nil {
			log.Fatalf("end render pass: %v", err)
		}

		fence, err := cb.SubmitAndAcquireFence()
		if err != nil {
			log.Fatalf("submit: %v", err)
		}
		device.WaitForFence(fence)
		if err := fence.Err(); err != nil {
			log.Fatalf("frame %d failed: %v", frame, err)
		}
		fence.Release()
	}

	device.WaitForIdle()
	log.Printf("stats: %+v", device.Stats())
	for _, h := range device.Hazards() {
		log.Printf("hazard: %s", h)
	}
}

// buildTriangle creates the vertex buffer and a persistent staging
// buffer holding one triangle in clip space.
func buildTriangle(device *cmdq.Device) (*cmdq.Buffer, *cmdq.TransferBuffer) {
	positions := []float32{
		0.0, 0.6,
		-0.6, -0.6,
		0.6, -0.6,
	}
	data := make([]byte, 0, len(positions)*4)
	for _, v := range positions {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}

	vertices, err := device.CreateBuffer(&cmdq.BufferDescriptor{
		Label: "triangle",
		Size:  uint64(len(data)),
		Usage: cmdq.BufferUsageVertex,
	})
	if err != nil {
		log.Fatalf("create buffer: %v", err)
	}
	staging, err := device.CreateTransferBuffer(uint64(len(data)), cmdq.TransferBufferUpload)
	if err != nil {
		log.Fatalf("create transfer buffer: %v", err)
	}
	window, err := staging.Map(false)
	if err != nil {
		log.Fatalf("map: %v", err)
	}
	copy(window, data)
	staging.Unmap()
	return vertices, staging
}

func buildPipeline(device *cmdq.Device) *cmdq.GraphicsPipeline {
	vs, err := device.CreateShader(&cmdq.ShaderDescriptor{
		Label:  "triangle_vs",
		Code:   []byte(vertexShader),
		Format: cmdq.ShaderFormatWGSL,
		Stage:  cmdq.ShaderStageVertex,
	})
	if err != nil {
		log.Fatalf("create vertex shader: %v", err)
	}
	defer vs.Release()
	fs, err := device.CreateShader(&cmdq.ShaderDescriptor{
		Label:  "triangle_fs",
		Code:   []byte(fragmentShader),
		Format: cmdq.ShaderFormatWGSL,
		Stage:  cmdq.ShaderStageFragment,
	})
	if err != nil {
		log.Fatalf("create fragment shader: %v", err)
	}
	defer fs.Release()

	pipeline, err := device.CreateGraphicsPipeline(&cmdq.GraphicsPipelineDescriptor{
		Label:          "triangle",
		VertexShader:   vs.ID(),
		FragmentShader: fs.ID(),
		Topology:       cmdq.PrimitiveTopologyTriangleList,
		VertexBuffers:  []cmdq.VertexBufferLayout{{Slot: 0, Pitch: 8}},
		VertexAttributes: []cmdq.VertexAttribute{
			{Location: 0, BufferSlot: 0, Offset: 0, ComponentCount: 2},
		},
		ColorTargets: []cmdq.ColorTargetDescription{{Format: cmdq.TextureFormatRGBA8Unorm}},
	})
	if err != nil {
		log.Fatalf("create pipeline: %v", err)
	}
	return pipeline
}
