package l1cloud

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire layout: 4-byte magic, uint32 point count, then per point x, y, z and
// packed rgb as little-endian float32.
const (
	cloudMagic     = "TTCL"
	cloudHeaderLen = 8
	pointWireLen   = 16
)

// ErrMalformedCloud is returned when a payload cannot be decoded.
var ErrMalformedCloud = errors.New("malformed cloud payload")

// EncodeCloud serialises c. Coordinates are narrowed to float32.
func EncodeCloud(c Cloud) []byte {
	buf := make([]byte, cloudHeaderLen+pointWireLen*len(c))
	copy(buf[0:4], cloudMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(c)))
	off := cloudHeaderLen
	for _, p := range c {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(float32(p.Z)))
		binary.LittleEndian.PutUint32(buf[off+12:], math.Float32bits(PackRGB(p.R, p.G, p.B)))
		off += pointWireLen
	}
	return buf
}

// DecodeCloud parses a payload produced by EncodeCloud.
func DecodeCloud(b []byte) (Cloud, error) {
	if len(b) < cloudHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than header", ErrMalformedCloud, len(b))
	}
	if string(b[0:4]) != cloudMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrMalformedCloud, b[0:4])
	}
	n := int(binary.LittleEndian.Uint32(b[4:8]))
	if want := cloudHeaderLen + n*pointWireLen; len(b) != want {
		return nil, fmt.Errorf("%w: %d points need %d bytes, got %d", ErrMalformedCloud, n, want, len(b))
	}
	c := make(Cloud, n)
	off := cloudHeaderLen
	for i := range c {
		x := math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(b[off+4:]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(b[off+8:]))
		r, g, bl := UnpackRGB(math.Float32frombits(binary.LittleEndian.Uint32(b[off+12:])))
		c[i] = Point{X: float64(x), Y: float64(y), Z: float64(z), R: r, G: g, B: bl}
		off += pointWireLen
	}
	return c, nil
}
