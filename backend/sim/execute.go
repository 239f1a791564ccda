package sim

import (
	"fmt"
	"time"

	"github.com/gogpu/cmdq/gpucore"
)

// Execute implements gpucore.Adapter. It replays the submission's
// command stream against CPU memory: copy commands move bytes, draws
// and dispatches are validated and counted.
func (a *Adapter) Execute(sub *gpucore.Submission) error {
	if a.Latency > 0 {
		time.Sleep(a.Latency)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return fmt.Errorf("sim: execute on closed adapter")
	}
	a.executed = append(a.executed, sub.Seq)

	for i, cmd := range sub.Commands {
		if err := a.exec(cmd); err != nil {
			return fmt.Errorf("sim: command %d (%s) in submission %d: %w", i, cmd.Type(), sub.Seq, err)
		}
	}
	return nil
}

func (a *Adapter) exec(cmd gpucore.Command) error {
	switch c := cmd.(type) {
	case *gpucore.UploadToBufferCommand:
		src, err := a.transferBytes(c.Src)
		if err != nil {
			return err
		}
		dst, err := a.bufferBytes(c.Dst)
		if err != nil {
			return err
		}
		copy(dst, src)

	case *gpucore.DownloadFromBufferCommand:
		src, err := a.bufferBytes(c.Src)
		if err != nil {
			return err
		}
		dst, err := a.transferBytes(c.Dst)
		if err != nil {
			return err
		}
		copy(dst, src)

	case *gpucore.CopyBufferToBufferCommand:
		src, err := a.bufferBytes(c.Src)
		if err != nil {
			return err
		}
		dst, err := a.bufferBytes(c.Dst)
		if err != nil {
			return err
		}
		copy(dst, src)

	case *gpucore.UploadToTextureCommand:
		src, err := a.transferBytes(c.Src)
		if err != nil {
			return err
		}
		return a.writeTexels(c.Dst, src, c.BytesPerRow)

	case *gpucore.DownloadFromTextureCommand:
		dst, err := a.transferBytes(c.Dst)
		if err != nil {
			return err
		}
		return a.readTexels(c.Src, dst, c.BytesPerRow)

	case *gpucore.CopyTextureToTextureCommand:
		src, ok := a.textures[c.Src.Texture]
		if !ok {
			return fmt.Errorf("unknown texture %d", c.Src.Texture)
		}
		bpt := uint64(src.desc.Format.BytesPerTexel())
		n := uint64(c.Src.Size.Width) * uint64(c.Src.Size.Height) * uint64(max(c.Src.Size.Depth, 1)) * bpt
		tmp := make([]byte, n)
		if err := a.readTexels(c.Src, tmp, 0); err != nil {
			return err
		}
		return a.writeTexels(c.Dst, tmp, 0)

	case *gpucore.DrawCommand, *gpucore.DrawIndexedCommand:
		a.draws++

	case *gpucore.DrawIndirectCommand:
		return a.indirectDraws(c.Buffer, c.Offset, c.DrawCount, gpucore.DrawIndirectArgsSize)

	case *gpucore.DrawIndexedIndirectCommand:
		return a.indirectDraws(c.Buffer, c.Offset, c.DrawCount, gpucore.DrawIndexedIndirectArgsSize)

	case *gpucore.DispatchCommand:
		a.dispatch++

	case *gpucore.DispatchIndirectCommand:
		data := a.buffers[c.Buffer]
		if data == nil {
			return fmt.Errorf("unknown indirect buffer %d", c.Buffer)
		}
		if c.Offset > uint64(len(data)) {
			return fmt.Errorf("truncated dispatch indirect record at %d", c.Offset)
		}
		if _, ok := gpucore.DecodeDispatchIndirectArgs(data[c.Offset:]); !ok {
			return fmt.Errorf("truncated dispatch indirect record at %d", c.Offset)
		}
		a.dispatch++

	case *gpucore.BindGraphicsPipelineCommand:
		if _, ok := a.pipelines[c.Pipeline]; !ok {
			return fmt.Errorf("unknown pipeline %d", c.Pipeline)
		}

	case *gpucore.BindComputePipelineCommand:
		if _, ok := a.pipelines[c.Pipeline]; !ok {
			return fmt.Errorf("unknown pipeline %d", c.Pipeline)
		}

	default:
		// Pass structure, state setters, bindings, uniforms, and debug
		// annotations carry no memory effects in the simulation.
	}
	return nil
}

// indirectDraws decodes and counts an indirect draw sequence.
func (a *Adapter) indirectDraws(buf gpucore.BufferID, offset uint64, count uint32, stride uint64) error {
	data := a.buffers[buf]
	if data == nil {
		return fmt.Errorf("unknown indirect buffer %d", buf)
	}
	if span := offset + uint64(count)*stride; span > uint64(len(data)) {
		return fmt.Errorf("truncated draw indirect records [%d,%d) out of %d bytes", offset, span, len(data))
	}
	for i := uint32(0); i < count; i++ {
		rec := data[offset+uint64(i)*stride:]
		if stride == gpucore.DrawIndirectArgsSize {
			if _, ok := gpucore.DecodeDrawIndirectArgs(rec); !ok {
				return fmt.Errorf("bad draw indirect record %d", i)
			}
		} else {
			if _, ok := gpucore.DecodeDrawIndexedIndirectArgs(rec); !ok {
				return fmt.Errorf("bad indexed draw indirect record %d", i)
			}
		}
	}
	// Counted only once the whole sequence validates, so a rejected
	// submission contributes nothing.
	a.draws += int(count)
	return nil
}

func (a *Adapter) bufferBytes(r gpucore.BufferRegion) ([]byte, error) {
	data, ok := a.buffers[r.Buffer]
	if !ok {
		return nil, fmt.Errorf("unknown buffer %d", r.Buffer)
	}
	if r.Offset+r.Size > uint64(len(data)) {
		return nil, fmt.Errorf("buffer region [%d,%d) out of %d bytes", r.Offset, r.Offset+r.Size, len(data))
	}
	return data[r.Offset : r.Offset+r.Size], nil
}

func (a *Adapter) transferBytes(r gpucore.TransferRegion) ([]byte, error) {
	data, ok := a.transfers[r.Transfer]
	if !ok {
		return nil, fmt.Errorf("unknown transfer buffer %d", r.Transfer)
	}
	if r.Offset+r.Size > uint64(len(data)) {
		return nil, fmt.Errorf("transfer region [%d,%d) out of %d bytes", r.Offset, r.Offset+r.Size, len(data))
	}
	return data[r.Offset : r.Offset+r.Size], nil
}

// level returns the backing bytes for one mip/layer, allocating on
// first touch.
func (a *Adapter) level(t *simTexture, mip, layer uint32) []byte {
	key := levelKey{mip, layer}
	if data, ok := t.levels[key]; ok {
		return data
	}
	w := max(t.desc.Width>>mip, 1)
	h := max(t.desc.Height>>mip, 1)
	bpt := uint64(t.desc.Format.BytesPerTexel())
	data := make([]byte, uint64(w)*uint64(h)*bpt)
	t.levels[key] = data
	return data
}

// writeTexels copies row-ordered source bytes into a texture region.
func (a *Adapter) writeTexels(r gpucore.TextureRegion, src []byte, bytesPerRow uint32) error {
	return a.texelRows(r, bytesPerRow, src, func(texRow, staging []byte) {
		copy(texRow, staging)
	})
}

// readTexels copies a texture region into row-ordered destination
// bytes.
func (a *Adapter) readTexels(r gpucore.TextureRegion, dst []byte, bytesPerRow uint32) error {
	return a.texelRows(r, bytesPerRow, dst, func(texRow, staging []byte) {
		copy(staging, texRow)
	})
}

// texelRows walks a region slice by slice and row by row, pairing each
// texture row with its staging-buffer span. Array layers and 3D depth
// share one slice axis, so a depth region starts at Layer+Origin.Z and
// covers Size.Depth consecutive slices.
func (a *Adapter) texelRows(r gpucore.TextureRegion, bytesPerRow uint32, staging []byte, op func(texRow, staging []byte)) error {
	t, ok := a.textures[r.Texture]
	if !ok {
		return fmt.Errorf("unknown texture %d", r.Texture)
	}
	bpt := uint32(t.desc.Format.BytesPerTexel())
	levelW := max(t.desc.Width>>r.MipLevel, 1)
	levelH := max(t.desc.Height>>r.MipLevel, 1)
	if r.Origin.X+r.Size.Width > levelW || r.Origin.Y+r.Size.Height > levelH {
		return fmt.Errorf("region exceeds %dx%d mip level", levelW, levelH)
	}
	slices := max(r.Size.Depth, 1)
	first := r.Layer + r.Origin.Z
	if total := max(t.desc.LayerCountOrDepth, 1); first+slices > total {
		return fmt.Errorf("region exceeds %d texture slices", total)
	}
	pitch := bytesPerRow
	if pitch == 0 {
		pitch = r.Size.Width * bpt
	}
	rowBytes := r.Size.Width * bpt
	for z := uint32(0); z < slices; z++ {
		data := a.level(t, r.MipLevel, first+z)
		for y := uint32(0); y < r.Size.Height; y++ {
			texOff := (uint64(r.Origin.Y+y)*uint64(levelW) + uint64(r.Origin.X)) * uint64(bpt)
			stgOff := (uint64(z)*uint64(r.Size.Height) + uint64(y)) * uint64(pitch)
			if stgOff+uint64(rowBytes) > uint64(len(staging)) {
				return fmt.Errorf("staging bytes exhausted at slice %d row %d", z, y)
			}
			op(data[texOff:texOff+uint64(rowBytes)], staging[stgOff:stgOff+uint64(rowBytes)])
		}
	}
	return nil
}
