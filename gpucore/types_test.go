package gpucore

import "testing"

func TestShaderFormat_SetOperations(t *testing.T) {
	set := ShaderFormatWGSL | ShaderFormatSPIRV

	if !set.Has(ShaderFormatWGSL) {
		t.Error("Has(WGSL) = false")
	}
	if set.Has(ShaderFormatDXIL) {
		t.Error("Has(DXIL) = true")
	}
	if !set.Has(ShaderFormatWGSL | ShaderFormatSPIRV) {
		t.Error("Has(full set) = false")
	}
	if set.Has(ShaderFormatWGSL | ShaderFormatDXIL) {
		t.Error("Has requires every bit, not any")
	}

	if !set.Intersects(ShaderFormatSPIRV | ShaderFormatMSL) {
		t.Error("Intersects with one shared bit = false")
	}
	if set.Intersects(ShaderFormatMSL) {
		t.Error("Intersects with disjoint set = true")
	}
	if ShaderFormat(0).Intersects(set) {
		t.Error("empty set intersects something")
	}
}

func TestTextureFormat_Properties(t *testing.T) {
	tests := []struct {
		format  TextureFormat
		bpt     int
		isDepth bool
	}{
		{TextureFormatRGBA8Unorm, 4, false},
		{TextureFormatBGRA8UnormSRGB, 4, false},
		{TextureFormatR8Unorm, 1, false},
		{TextureFormatR32Float, 4, false},
		{TextureFormatRG32Float, 8, false},
		{TextureFormatRGBA32Float, 16, false},
		{TextureFormatDepth32Float, 4, true},
		{TextureFormatDepth24PlusStencil8, 4, true},
	}
	for _, tt := range tests {
		if got := tt.format.BytesPerTexel(); got != tt.bpt {
			t.Errorf("format %d BytesPerTexel() = %d, want %d", tt.format, got, tt.bpt)
		}
		if got := tt.format.IsDepthStencil(); got != tt.isDepth {
			t.Errorf("format %d IsDepthStencil() = %v, want %v", tt.format, got, tt.isDepth)
		}
	}
}

func TestShaderStage_String(t *testing.T) {
	for stage, want := range map[ShaderStage]string{
		ShaderStageVertex:   "vertex",
		ShaderStageFragment: "fragment",
		ShaderStageCompute:  "compute",
	} {
		if got := stage.String(); got != want {
			t.Errorf("ShaderStage(%d).String() = %q, want %q", stage, got, want)
		}
	}
}
