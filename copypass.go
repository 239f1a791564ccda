package cmdq

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/cmdq/gpucore"
)

// TextureSlice selects a region of one mip level of one layer of a
// texture. A zero Size selects the full level.
type TextureSlice struct {
	Texture  *Texture
	MipLevel uint32
	Layer    uint32
	Origin   Origin3D
	Size     Extent3D
}

// CopyPass records transfer commands: uploads from and downloads to
// transfer buffers, and GPU-to-GPU copies. Copy passes have no
// pipeline or binding state.
type CopyPass struct {
	cb    *CommandBuffer
	ended bool
}

// BeginCopyPass opens a copy pass on the command buffer.
func (cb *CommandBuffer) BeginCopyPass() (*CopyPass, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.require(); err != nil {
		return nil, err
	}
	if cb.pass != passNone {
		return nil, ErrPassOpen
	}
	cb.pass = passCopy
	cb.record(&gpucore.BeginCopyPassCommand{})
	return &CopyPass{cb: cb}, nil
}

func (cp *CopyPass) check() error {
	if cp.ended {
		return ErrPassEnded
	}
	return cp.cb.require()
}

// UploadToBuffer copies size bytes from a transfer buffer into a GPU
// buffer. The source window is the transfer buffer's current instance:
// map, write, unmap, then record the upload. With cycle set the
// destination rotates if in-flight work still references it.
func (cp *CopyPass) UploadToBuffer(src *TransferBuffer, srcOffset uint64, dst *Buffer, dstOffset, size uint64, cycle bool) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil copy endpoint", ErrInvalidDescriptor)
	}
	if src.usage != TransferBufferUpload {
		return fmt.Errorf("%w: transfer buffer is not an upload buffer", ErrUnsupportedUsage)
	}
	if srcOffset+size > src.size || dstOffset+size > dst.size {
		return fmt.Errorf("%w: copy of %d bytes exceeds a buffer bound", ErrInvalidDescriptor, size)
	}
	srcID, err := cp.cb.readResource(src.slot)
	if err != nil {
		return err
	}
	dstID, err := cp.cb.writeResource(dst.slot, cycle, "upload to buffer")
	if err != nil {
		return err
	}
	cp.cb.record(&gpucore.UploadToBufferCommand{
		Src: gpucore.TransferRegion{Transfer: gpucore.TransferBufferID(srcID), Offset: srcOffset, Size: size},
		Dst: gpucore.BufferRegion{Buffer: gpucore.BufferID(dstID), Offset: dstOffset, Size: size},
	})
	return nil
}

// UploadToTexture copies texel data from a transfer buffer into a
// texture region. bytesPerRow is the source row pitch; zero means
// tightly packed.
func (cp *CopyPass) UploadToTexture(src *TransferBuffer, srcOffset uint64, bytesPerRow uint32, dst TextureSlice, cycle bool) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("%w: nil transfer buffer", ErrInvalidDescriptor)
	}
	if src.usage != TransferBufferUpload {
		return fmt.Errorf("%w: transfer buffer is not an upload buffer", ErrUnsupportedUsage)
	}
	region, err := cp.resolveSlice(&dst)
	if err != nil {
		return err
	}
	size := cp.sliceBytes(dst, bytesPerRow)
	if srcOffset+size > src.size {
		return fmt.Errorf("%w: texture upload of %d bytes exceeds transfer buffer", ErrInvalidDescriptor, size)
	}
	srcID, err := cp.cb.readResource(src.slot)
	if err != nil {
		return err
	}
	dstID, err := cp.textureWrite(dst.Texture, cycle, "upload to texture")
	if err != nil {
		return err
	}
	region.Texture = dstID
	cp.cb.record(&gpucore.UploadToTextureCommand{
		Src:         gpucore.TransferRegion{Transfer: gpucore.TransferBufferID(srcID), Offset: srcOffset, Size: size},
		Dst:         region,
		BytesPerRow: bytesPerRow,
	})
	return nil
}

// DownloadFromBuffer copies size bytes from a GPU buffer into a
// download transfer buffer. The data is defined only after the
// submission's fence signals.
func (cp *CopyPass) DownloadFromBuffer(src *Buffer, srcOffset uint64, dst *TransferBuffer, dstOffset, size uint64) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil copy endpoint", ErrInvalidDescriptor)
	}
	if dst.usage != TransferBufferDownload {
		return fmt.Errorf("%w: transfer buffer is not a download buffer", ErrUnsupportedUsage)
	}
	if srcOffset+size > src.size || dstOffset+size > dst.size {
		return fmt.Errorf("%w: copy of %d bytes exceeds a buffer bound", ErrInvalidDescriptor, size)
	}
	srcID, err := cp.cb.readResource(src.slot)
	if err != nil {
		return err
	}
	dstID, err := cp.cb.writeResource(dst.slot, false, "download into transfer buffer")
	if err != nil {
		return err
	}
	cp.cb.record(&gpucore.DownloadFromBufferCommand{
		Src: gpucore.BufferRegion{Buffer: gpucore.BufferID(srcID), Offset: srcOffset, Size: size},
		Dst: gpucore.TransferRegion{Transfer: gpucore.TransferBufferID(dstID), Offset: dstOffset, Size: size},
	})
	return nil
}

// DownloadFromTexture copies a texture region into a download transfer
// buffer.
func (cp *CopyPass) DownloadFromTexture(src TextureSlice, dst *TransferBuffer, dstOffset uint64, bytesPerRow uint32) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	if dst == nil {
		return fmt.Errorf("%w: nil transfer buffer", ErrInvalidDescriptor)
	}
	if dst.usage != TransferBufferDownload {
		return fmt.Errorf("%w: transfer buffer is not a download buffer", ErrUnsupportedUsage)
	}
	region, err := cp.resolveSlice(&src)
	if err != nil {
		return err
	}
	size := cp.sliceBytes(src, bytesPerRow)
	if dstOffset+size > dst.size {
		return fmt.Errorf("%w: texture download of %d bytes exceeds transfer buffer", ErrInvalidDescriptor, size)
	}
	srcID, err := cp.cb.readResource(src.Texture.slot)
	if err != nil {
		return err
	}
	region.Texture = gpucore.TextureID(srcID)
	dstID, err := cp.cb.writeResource(dst.slot, false, "download into transfer buffer")
	if err != nil {
		return err
	}
	cp.cb.record(&gpucore.DownloadFromTextureCommand{
		Src:         region,
		Dst:         gpucore.TransferRegion{Transfer: gpucore.TransferBufferID(dstID), Offset: dstOffset, Size: size},
		BytesPerRow: bytesPerRow,
	})
	return nil
}

// CopyBufferToBuffer copies bytes between GPU buffers.
func (cp *CopyPass) CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset, size uint64, cycle bool) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil copy endpoint", ErrInvalidDescriptor)
	}
	if srcOffset+size > src.size || dstOffset+size > dst.size {
		return fmt.Errorf("%w: copy of %d bytes exceeds a buffer bound", ErrInvalidDescriptor, size)
	}
	srcID, err := cp.cb.readResource(src.slot)
	if err != nil {
		return err
	}
	dstID, err := cp.cb.writeResource(dst.slot, cycle, "copy to buffer")
	if err != nil {
		return err
	}
	cp.cb.record(&gpucore.CopyBufferToBufferCommand{
		Src: gpucore.BufferRegion{Buffer: gpucore.BufferID(srcID), Offset: srcOffset, Size: size},
		Dst: gpucore.BufferRegion{Buffer: gpucore.BufferID(dstID), Offset: dstOffset, Size: size},
	})
	return nil
}

// CopyTextureToTexture copies texels between texture regions of the
// same format.
func (cp *CopyPass) CopyTextureToTexture(src, dst TextureSlice, cycle bool) error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	srcRegion, err := cp.resolveSlice(&src)
	if err != nil {
		return err
	}
	dstRegion, err := cp.resolveSlice(&dst)
	if err != nil {
		return err
	}
	if src.Texture.format != dst.Texture.format {
		return fmt.Errorf("%w: texture copy between formats %d and %d",
			ErrUnsupportedFormat, src.Texture.format, dst.Texture.format)
	}
	srcID, err := cp.cb.readResource(src.Texture.slot)
	if err != nil {
		return err
	}
	srcRegion.Texture = gpucore.TextureID(srcID)
	dstID, err := cp.textureWrite(dst.Texture, cycle, "copy to texture")
	if err != nil {
		return err
	}
	dstRegion.Texture = dstID
	cp.cb.record(&gpucore.CopyTextureToTextureCommand{Src: srcRegion, Dst: dstRegion})
	return nil
}

// UploadImage stages img through a transient transfer buffer and
// records an upload into the destination slice. The destination must
// be an RGBA8 texture; source pixels are converted with x/image/draw.
func (cp *CopyPass) UploadImage(img image.Image, dst TextureSlice, cycle bool) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidDescriptor)
	}
	cp.cb.mu.Lock()
	ended := cp.ended
	err := cp.cb.require()
	cp.cb.mu.Unlock()
	if ended {
		return ErrPassEnded
	}
	if err != nil {
		return err
	}
	if dst.Texture == nil {
		return fmt.Errorf("%w: nil destination texture", ErrInvalidDescriptor)
	}
	switch dst.Texture.format {
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSRGB:
	default:
		return fmt.Errorf("%w: image upload needs an RGBA8 texture", ErrUnsupportedFormat)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if dst.Size.Width == 0 {
		dst.Size = Extent3D{Width: uint32(w), Height: uint32(h), Depth: 1}
	}

	staging, err := cp.cb.device.CreateTransferBuffer(uint64(w*h*4), TransferBufferUpload)
	if err != nil {
		return err
	}
	defer staging.Release()

	window, err := staging.Map(false)
	if err != nil {
		return err
	}
	rgba := &image.RGBA{Pix: window, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	xdraw.Draw(rgba, rgba.Rect, img, bounds.Min, xdraw.Src)
	staging.Unmap()

	return cp.UploadToTexture(staging, 0, uint32(w*4), dst, cycle)
}

// textureWrite resolves a texture written by a copy command.
func (cp *CopyPass) textureWrite(t *Texture, cycle bool, op string) (gpucore.TextureID, error) {
	if t.swapchain {
		id, err := cp.cb.readResource(t.slot)
		return gpucore.TextureID(id), err
	}
	id, err := cp.cb.writeResource(t.slot, cycle, op)
	return gpucore.TextureID(id), err
}

// resolveSlice validates a texture slice and fills a zero Size with
// the full mip level extent. The returned region's Texture field is
// set by the caller once the physical instance is resolved.
func (cp *CopyPass) resolveSlice(ts *TextureSlice) (gpucore.TextureRegion, error) {
	if ts.Texture == nil {
		return gpucore.TextureRegion{}, fmt.Errorf("%w: nil texture in slice", ErrInvalidDescriptor)
	}
	t := ts.Texture
	if ts.MipLevel >= t.mipLevels {
		return gpucore.TextureRegion{}, fmt.Errorf("%w: mip level %d of %d", ErrInvalidDescriptor, ts.MipLevel, t.mipLevels)
	}
	levelW := max(t.width>>ts.MipLevel, 1)
	levelH := max(t.height>>ts.MipLevel, 1)
	if ts.Size.Width == 0 {
		ts.Size = Extent3D{Width: levelW, Height: levelH, Depth: 1}
	}
	if ts.Origin.X+ts.Size.Width > levelW || ts.Origin.Y+ts.Size.Height > levelH {
		return gpucore.TextureRegion{}, fmt.Errorf("%w: region exceeds %dx%d mip level", ErrInvalidDescriptor, levelW, levelH)
	}
	return gpucore.TextureRegion{
		MipLevel: ts.MipLevel,
		Layer:    ts.Layer,
		Origin:   ts.Origin,
		Size:     ts.Size,
	}, nil
}

// sliceBytes returns the staging byte span of a slice transfer.
func (cp *CopyPass) sliceBytes(ts TextureSlice, bytesPerRow uint32) uint64 {
	bpt := uint32(ts.Texture.format.BytesPerTexel())
	pitch := bytesPerRow
	if pitch == 0 {
		pitch = ts.Size.Width * bpt
	}
	depth := max(ts.Size.Depth, 1)
	return uint64(pitch) * uint64(ts.Size.Height) * uint64(depth)
}

// End closes the pass.
func (cp *CopyPass) End() error {
	cp.cb.mu.Lock()
	defer cp.cb.mu.Unlock()
	if err := cp.check(); err != nil {
		return err
	}
	cp.ended = true
	cp.cb.pass = passNone
	cp.cb.record(&gpucore.EndPassCommand{})
	return nil
}
