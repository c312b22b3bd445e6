package gpu

import (
	"encoding/binary"
	"math"
)

// float32SliceToBytes packs values little-endian for buffer upload.
func float32SliceToBytes(data []float32) []byte {
	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
	}
	return buf
}

// bytesToFloat32Slice is the inverse of float32SliceToBytes.
func bytesToFloat32Slice(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4 : (i+1)*4]))
	}
	return out
}

// paramsBytes lays out the shader's Params uniform.
func paramsBytes(width, height int, spatial, rangeSigma float32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(height))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(spatial))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(rangeSigma))
	return buf
}
