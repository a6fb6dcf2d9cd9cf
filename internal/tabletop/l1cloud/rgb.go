package l1cloud

import "math"

// PackRGB packs 8-bit channels into the float32 layout used by PointXYZRGB
// clouds: the bits of uint32(r<<16 | g<<8 | b) reinterpreted as a float.
func PackRGB(r, g, b uint8) float32 {
	return math.Float32frombits(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// UnpackRGB reverses PackRGB.
func UnpackRGB(f float32) (r, g, b uint8) {
	v := math.Float32bits(f)
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}
