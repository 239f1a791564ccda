package sim

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gogpu/cmdq/gpucore"
)

func openAdapter(t *testing.T) *Adapter {
	t.Helper()
	a := New()
	if err := a.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestExecute_ClosedAdapter(t *testing.T) {
	a := New()
	if err := a.Execute(&gpucore.Submission{Seq: 1}); err == nil {
		t.Error("Execute on unopened adapter succeeded")
	}
}

func TestExecute_MovesBufferBytes(t *testing.T) {
	a := openAdapter(t)

	tb, err := a.CreateTransferBuffer(8, gpucore.TransferBufferUpload)
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}
	window, err := a.MapTransferBuffer(tb)
	if err != nil {
		t.Fatalf("MapTransferBuffer: %v", err)
	}
	copy(window, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	a.UnmapTransferBuffer(tb)

	buf, err := a.CreateBuffer(&gpucore.BufferDescriptor{Size: 8})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	err = a.Execute(&gpucore.Submission{
		Seq: 1,
		Commands: []gpucore.Command{
			&gpucore.UploadToBufferCommand{
				Src: gpucore.TransferRegion{Transfer: tb, Offset: 0, Size: 8},
				Dst: gpucore.BufferRegion{Buffer: buf, Offset: 0, Size: 8},
			},
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got := a.BufferData(buf); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("buffer bytes = %v", got)
	}
	if seqs := a.ExecutedSeqs(); len(seqs) != 1 || seqs[0] != 1 {
		t.Errorf("ExecutedSeqs() = %v, want [1]", seqs)
	}
}

func TestExecute_RegionBounds(t *testing.T) {
	a := openAdapter(t)

	buf, err := a.CreateBuffer(&gpucore.BufferDescriptor{Size: 4})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	tb, err := a.CreateTransferBuffer(4, gpucore.TransferBufferUpload)
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}

	err = a.Execute(&gpucore.Submission{
		Seq: 1,
		Commands: []gpucore.Command{
			&gpucore.UploadToBufferCommand{
				Src: gpucore.TransferRegion{Transfer: tb, Offset: 2, Size: 4},
				Dst: gpucore.BufferRegion{Buffer: buf, Offset: 0, Size: 4},
			},
		},
	})
	if err == nil || !strings.Contains(err.Error(), "transfer region") {
		t.Errorf("overrun error = %v, want transfer region bounds failure", err)
	}
}

func TestExecute_TextureRegionWrites(t *testing.T) {
	a := openAdapter(t)

	tex, err := a.CreateTexture(&gpucore.TextureDescriptor{
		Width: 4, Height: 4,
		LayerCountOrDepth: 1, MipLevelCount: 1, SampleCount: 1,
		Format: gpucore.TextureFormatR8Unorm,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	tb, err := a.CreateTransferBuffer(4, gpucore.TransferBufferUpload)
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}
	window, _ := a.MapTransferBuffer(tb)
	copy(window, []byte{0xAA, 0xBB, 0xCC, 0xDD})

	// Write a 2x2 sub-region at (1,1).
	err = a.Execute(&gpucore.Submission{
		Seq: 1,
		Commands: []gpucore.Command{
			&gpucore.UploadToTextureCommand{
				Src: gpucore.TransferRegion{Transfer: tb, Offset: 0, Size: 4},
				Dst: gpucore.TextureRegion{
					Texture: tex,
					Origin:  gpucore.Origin3D{X: 1, Y: 1},
					Size:    gpucore.Extent3D{Width: 2, Height: 2, Depth: 1},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []byte{
		0, 0, 0, 0,
		0, 0xAA, 0xBB, 0,
		0, 0xCC, 0xDD, 0,
		0, 0, 0, 0,
	}
	if got := a.TextureData(tex, 0, 0); !bytes.Equal(got, want) {
		t.Errorf("level bytes = %v, want %v", got, want)
	}
}

func TestExecute_DepthSliceWrites(t *testing.T) {
	a := openAdapter(t)

	tex, err := a.CreateTexture(&gpucore.TextureDescriptor{
		Width: 2, Height: 2,
		LayerCountOrDepth: 2, MipLevelCount: 1, SampleCount: 1,
		Format: gpucore.TextureFormatR8Unorm,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	tb, err := a.CreateTransferBuffer(8, gpucore.TransferBufferUpload)
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}
	window, _ := a.MapTransferBuffer(tb)
	copy(window, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	// A depth-2 region must land in both slices, one 2x2 plane each.
	err = a.Execute(&gpucore.Submission{
		Seq: 1,
		Commands: []gpucore.Command{
			&gpucore.UploadToTextureCommand{
				Src: gpucore.TransferRegion{Transfer: tb, Offset: 0, Size: 8},
				Dst: gpucore.TextureRegion{
					Texture: tex,
					Size:    gpucore.Extent3D{Width: 2, Height: 2, Depth: 2},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got := a.TextureData(tex, 0, 0); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("slice 0 bytes = %v, want [1 2 3 4]", got)
	}
	if got := a.TextureData(tex, 0, 1); !bytes.Equal(got, []byte{5, 6, 7, 8}) {
		t.Errorf("slice 1 bytes = %v, want [5 6 7 8]", got)
	}

	// A region past the slice count is rejected.
	err = a.Execute(&gpucore.Submission{
		Seq: 2,
		Commands: []gpucore.Command{
			&gpucore.UploadToTextureCommand{
				Src: gpucore.TransferRegion{Transfer: tb, Offset: 0, Size: 8},
				Dst: gpucore.TextureRegion{
					Texture: tex,
					Origin:  gpucore.Origin3D{Z: 1},
					Size:    gpucore.Extent3D{Width: 2, Height: 2, Depth: 2},
				},
			},
		},
	})
	if err == nil || !strings.Contains(err.Error(), "slices") {
		t.Errorf("deep region error = %v", err)
	}
}

func TestExecute_IndirectDrawValidation(t *testing.T) {
	a := openAdapter(t)

	buf, err := a.CreateBuffer(&gpucore.BufferDescriptor{Size: gpucore.DrawIndirectArgsSize})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	// One valid record fits; asking for two must fail as truncated.
	if err := a.Execute(&gpucore.Submission{
		Seq:      1,
		Commands: []gpucore.Command{&gpucore.DrawIndirectCommand{Buffer: buf, Offset: 0, DrawCount: 2}},
	}); err == nil || !strings.Contains(err.Error(), "truncated") {
		t.Errorf("truncated record error = %v", err)
	}
	if draws, _ := a.Counts(); draws != 0 {
		t.Errorf("Counts() draws = %d after rejected submission, want 0", draws)
	}

	if err := a.Execute(&gpucore.Submission{
		Seq:      2,
		Commands: []gpucore.Command{&gpucore.DrawIndirectCommand{Buffer: buf, Offset: 0, DrawCount: 1}},
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	draws, _ := a.Counts()
	if draws != 1 {
		t.Errorf("Counts() draws = %d, want 1", draws)
	}
}

func TestExecute_UnknownPipeline(t *testing.T) {
	a := openAdapter(t)
	err := a.Execute(&gpucore.Submission{
		Seq:      1,
		Commands: []gpucore.Command{&gpucore.BindGraphicsPipelineCommand{Pipeline: 999}},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown pipeline") {
		t.Errorf("unknown pipeline error = %v", err)
	}
}

func TestPresent_RequiresSurfaceTexture(t *testing.T) {
	a := openAdapter(t)

	plain, err := a.CreateTexture(&gpucore.TextureDescriptor{
		Width: 2, Height: 2,
		LayerCountOrDepth: 1, MipLevelCount: 1, SampleCount: 1,
		Format: gpucore.TextureFormatRGBA8Unorm,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if err := a.Present(plain); err == nil {
		t.Error("Present of a non-surface texture succeeded")
	}

	surface, err := a.CreateSurfaceTexture(2, 2, gpucore.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("CreateSurfaceTexture: %v", err)
	}
	if err := a.Present(surface); err != nil {
		t.Errorf("Present: %v", err)
	}
	if got := a.Presents(); got != 1 {
		t.Errorf("Presents() = %d, want 1", got)
	}
}
