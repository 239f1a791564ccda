package gpucore

import "encoding/binary"

// Indirect argument records.
//
// Buffers that supply indirect draws and dispatches must contain
// tightly packed, natively aligned arrays of these records. The byte
// layouts are fixed little-endian 32-bit words and must be reproduced
// bit-for-bit, since the GPU reads them directly.

// Record sizes in bytes.
const (
	DrawIndirectArgsSize        = 16
	DrawIndexedIndirectArgsSize = 20
	DispatchIndirectArgsSize    = 12
)

// DrawIndirectArgs is the argument record for indirect draws.
type DrawIndirectArgs struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// Encode appends the record's wire form to dst and returns the result.
func (a DrawIndirectArgs) Encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, a.VertexCount)
	dst = binary.LittleEndian.AppendUint32(dst, a.InstanceCount)
	dst = binary.LittleEndian.AppendUint32(dst, a.FirstVertex)
	dst = binary.LittleEndian.AppendUint32(dst, a.FirstInstance)
	return dst
}

// DecodeDrawIndirectArgs reads one record from src.
func DecodeDrawIndirectArgs(src []byte) (DrawIndirectArgs, bool) {
	if len(src) < DrawIndirectArgsSize {
		return DrawIndirectArgs{}, false
	}
	return DrawIndirectArgs{
		VertexCount:   binary.LittleEndian.Uint32(src[0:]),
		InstanceCount: binary.LittleEndian.Uint32(src[4:]),
		FirstVertex:   binary.LittleEndian.Uint32(src[8:]),
		FirstInstance: binary.LittleEndian.Uint32(src[12:]),
	}, true
}

// DrawIndexedIndirectArgs is the argument record for indexed indirect
// draws. VertexOffset is signed.
type DrawIndexedIndirectArgs struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// Encode appends the record's wire form to dst and returns the result.
func (a DrawIndexedIndirectArgs) Encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, a.IndexCount)
	dst = binary.LittleEndian.AppendUint32(dst, a.InstanceCount)
	dst = binary.LittleEndian.AppendUint32(dst, a.FirstIndex)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(a.VertexOffset))
	dst = binary.LittleEndian.AppendUint32(dst, a.FirstInstance)
	return dst
}

// DecodeDrawIndexedIndirectArgs reads one record from src.
func DecodeDrawIndexedIndirectArgs(src []byte) (DrawIndexedIndirectArgs, bool) {
	if len(src) < DrawIndexedIndirectArgsSize {
		return DrawIndexedIndirectArgs{}, false
	}
	return DrawIndexedIndirectArgs{
		IndexCount:    binary.LittleEndian.Uint32(src[0:]),
		InstanceCount: binary.LittleEndian.Uint32(src[4:]),
		FirstIndex:    binary.LittleEndian.Uint32(src[8:]),
		VertexOffset:  int32(binary.LittleEndian.Uint32(src[12:])),
		FirstInstance: binary.LittleEndian.Uint32(src[16:]),
	}, true
}

// DispatchIndirectArgs is the argument record for indirect dispatches.
type DispatchIndirectArgs struct {
	GroupsX uint32
	GroupsY uint32
	GroupsZ uint32
}

// Encode appends the record's wire form to dst and returns the result.
func (a DispatchIndirectArgs) Encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, a.GroupsX)
	dst = binary.LittleEndian.AppendUint32(dst, a.GroupsY)
	dst = binary.LittleEndian.AppendUint32(dst, a.GroupsZ)
	return dst
}

// DecodeDispatchIndirectArgs reads one record from src.
func DecodeDispatchIndirectArgs(src []byte) (DispatchIndirectArgs, bool) {
	if len(src) < DispatchIndirectArgsSize {
		return DispatchIndirectArgs{}, false
	}
	return DispatchIndirectArgs{
		GroupsX: binary.LittleEndian.Uint32(src[0:]),
		GroupsY: binary.LittleEndian.Uint32(src[4:]),
		GroupsZ: binary.LittleEndian.Uint32(src[8:]),
	}, true
}
