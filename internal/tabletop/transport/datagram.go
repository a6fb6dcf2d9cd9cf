package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// Datagram layout: 4-byte magic, uint32 frame sequence, uint16 chunk index,
// uint16 chunk count, then the chunk payload. Integers are little endian.
const (
	datagramMagic     = "TTPC"
	DatagramHeaderLen = 12
	// DefaultChunkSize keeps datagrams under a 1500-byte Ethernet MTU.
	DefaultChunkSize = 1400
)

// ErrMalformedDatagram is returned for datagrams that cannot be parsed or
// are inconsistent with the frame being assembled.
var ErrMalformedDatagram = errors.New("malformed datagram")

// Datagram is one chunk of a frame.
type Datagram struct {
	Seq     uint32
	Index   uint16
	Count   uint16
	Payload []byte
}

// Marshal encodes d with its header.
func (d Datagram) Marshal() []byte {
	b := make([]byte, DatagramHeaderLen+len(d.Payload))
	copy(b[0:4], datagramMagic)
	binary.LittleEndian.PutUint32(b[4:8], d.Seq)
	binary.LittleEndian.PutUint16(b[8:10], d.Index)
	binary.LittleEndian.PutUint16(b[10:12], d.Count)
	copy(b[DatagramHeaderLen:], d.Payload)
	return b
}

// ParseDatagram decodes b. Payload aliases b.
func ParseDatagram(b []byte) (Datagram, error) {
	if len(b) < DatagramHeaderLen {
		return Datagram{}, fmt.Errorf("%w: %d bytes is shorter than header", ErrMalformedDatagram, len(b))
	}
	if string(b[0:4]) != datagramMagic {
		return Datagram{}, fmt.Errorf("%w: bad magic %q", ErrMalformedDatagram, b[0:4])
	}
	d := Datagram{
		Seq:     binary.LittleEndian.Uint32(b[4:8]),
		Index:   binary.LittleEndian.Uint16(b[8:10]),
		Count:   binary.LittleEndian.Uint16(b[10:12]),
		Payload: b[DatagramHeaderLen:],
	}
	if d.Count == 0 || d.Index >= d.Count {
		return Datagram{}, fmt.Errorf("%w: chunk %d of %d", ErrMalformedDatagram, d.Index, d.Count)
	}
	return d, nil
}

// Split cuts payload into datagrams carrying at most chunkSize payload
// bytes each. An empty payload still produces one datagram.
func Split(seq uint32, payload []byte, chunkSize int) ([][]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	n := (len(payload) + chunkSize - 1) / chunkSize
	if n == 0 {
		n = 1
	}
	if n > math.MaxUint16 {
		return nil, fmt.Errorf("payload of %d bytes needs %d chunks, limit is %d", len(payload), n, math.MaxUint16)
	}
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		lo := i * chunkSize
		hi := lo + chunkSize
		if hi > len(payload) {
			hi = len(payload)
		}
		d := Datagram{Seq: seq, Index: uint16(i), Count: uint16(n), Payload: payload[lo:hi]}
		out = append(out, d.Marshal())
	}
	return out, nil
}

// SplitCloud encodes c and splits it into datagrams.
func SplitCloud(seq uint32, c l1cloud.Cloud, chunkSize int) ([][]byte, error) {
	return Split(seq, l1cloud.EncodeCloud(c), chunkSize)
}

// ReassemblyStats counts what a Reassembler has seen.
type ReassemblyStats struct {
	Datagrams  uint64
	Frames     uint64
	Superseded uint64
	Stale      uint64
	Duplicates uint64
	Malformed  uint64
}

// Reassembler rebuilds frames from datagrams. It tracks one frame at a
// time: a datagram from a newer sequence discards the partial frame, and
// datagrams from older sequences are ignored. Sequence comparison
// tolerates uint32 wraparound.
type Reassembler struct {
	mu sync.Mutex

	active bool
	seq    uint32
	count  uint16
	chunks [][]byte
	have   int

	emitted bool
	last    uint32

	stats ReassemblyStats
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Add consumes one datagram. When it completes a frame, Add returns the
// frame payload and true. b may be reused by the caller after Add returns.
func (r *Reassembler) Add(b []byte) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Datagrams++

	d, err := ParseDatagram(b)
	if err != nil {
		r.stats.Malformed++
		return nil, false, err
	}
	if r.emitted && !newerSeq(d.Seq, r.last) {
		r.stats.Stale++
		return nil, false, nil
	}
	if r.active && d.Seq != r.seq {
		if !newerSeq(d.Seq, r.seq) {
			r.stats.Stale++
			return nil, false, nil
		}
		r.stats.Superseded++
		tracef("frame %d superseded by %d with %d/%d chunks", r.seq, d.Seq, r.have, r.count)
		r.active = false
	}
	if !r.active {
		r.active = true
		r.seq = d.Seq
		r.count = d.Count
		r.chunks = make([][]byte, d.Count)
		r.have = 0
	}
	if d.Count != r.count {
		r.stats.Malformed++
		return nil, false, fmt.Errorf("%w: frame %d chunk count changed from %d to %d", ErrMalformedDatagram, d.Seq, r.count, d.Count)
	}
	if r.chunks[d.Index] != nil {
		r.stats.Duplicates++
		return nil, false, nil
	}
	r.chunks[d.Index] = append(make([]byte, 0, len(d.Payload)), d.Payload...)
	r.have++
	if r.have < int(r.count) {
		return nil, false, nil
	}

	size := 0
	for _, c := range r.chunks {
		size += len(c)
	}
	payload := make([]byte, 0, size)
	for _, c := range r.chunks {
		payload = append(payload, c...)
	}
	r.active = false
	r.chunks = nil
	r.emitted = true
	r.last = d.Seq
	r.stats.Frames++
	return payload, true, nil
}

// Stats returns a snapshot of the counters.
func (r *Reassembler) Stats() ReassemblyStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// newerSeq reports whether a is after b in uint32 serial order.
func newerSeq(a, b uint32) bool {
	return int32(a-b) > 0
}

// deliver feeds one datagram to r and, when a frame completes, decodes it
// and hands it to handler.
func deliver(r *Reassembler, b []byte, handler FrameHandler) error {
	payload, complete, err := r.Add(b)
	if err != nil || !complete {
		return err
	}
	cloud, err := l1cloud.DecodeCloud(payload)
	if err != nil {
		return err
	}
	handler(cloud)
	return nil
}
