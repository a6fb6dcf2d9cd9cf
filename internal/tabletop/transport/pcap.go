package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/timeutil"
)

// ReplayConfig controls PCAP replay.
type ReplayConfig struct {
	// Port keeps only UDP datagrams sent to this port; 0 keeps all.
	Port int
	// Realtime sleeps between packets to reproduce the capture's timing,
	// scaled by Speed (2 plays twice as fast). Speed <= 0 means 1.
	Realtime bool
	Speed    float64
	Clock    timeutil.Clock
}

// ReplayStats summarises one replay.
type ReplayStats struct {
	Packets  int
	Matched  int
	Frames   int
	Rejected int
	Elapsed  time.Duration
}

// ReplayFile opens a classic pcap file and replays it.
func ReplayFile(ctx context.Context, path string, cfg ReplayConfig, handler FrameHandler) (ReplayStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReplayStats{}, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()
	return Replay(ctx, f, cfg, handler)
}

// Replay reads captured frame datagrams from r, reassembles them and hands
// each complete frame to handler. It stops at end of capture or when ctx
// is done.
func Replay(ctx context.Context, r io.Reader, cfg ReplayConfig, handler FrameHandler) (ReplayStats, error) {
	var stats ReplayStats
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1
	}

	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return stats, fmt.Errorf("failed to read PCAP header: %w", err)
	}
	linkType := pr.LinkType()
	reasm := NewReassembler()
	counted := func(c l1cloud.Cloud) {
		stats.Frames++
		handler(c)
	}

	start := clock.Now()
	var prev time.Time
	for {
		if err := ctx.Err(); err != nil {
			diagf("PCAP replay stopping after %d packets: %v", stats.Packets, err)
			return stats, err
		}
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		if cfg.Realtime && !prev.IsZero() {
			if gap := ci.Timestamp.Sub(prev); gap > 0 {
				clock.Sleep(time.Duration(float64(gap) / speed))
			}
		}
		prev = ci.Timestamp

		pkt := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if cfg.Port != 0 && int(udp.DstPort) != cfg.Port {
			continue
		}
		stats.Matched++
		if err := deliver(reasm, udp.Payload, counted); err != nil {
			stats.Rejected++
			tracef("PCAP packet %d rejected: %v", stats.Packets, err)
		}
	}
	stats.Elapsed = clock.Since(start)
	diagf("PCAP replay complete: %d packets, %d matched, %d frames in %v",
		stats.Packets, stats.Matched, stats.Frames, stats.Elapsed)
	return stats, nil
}

// CaptureWriter records frame datagrams as Ethernet/IPv4/UDP packets in
// classic pcap format.
type CaptureWriter struct {
	w   *pcapgo.Writer
	src *net.UDPAddr
	dst *net.UDPAddr
}

// NewCaptureWriter writes a pcap header to w. Packets appear to travel
// from src to dst.
func NewCaptureWriter(w io.Writer, src, dst *net.UDPAddr) (*CaptureWriter, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(maxDatagram, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write PCAP header: %w", err)
	}
	return &CaptureWriter{w: pw, src: src, dst: dst}, nil
}

// WriteDatagram appends one UDP packet carrying payload, stamped ts.
func (cw *CaptureWriter) WriteDatagram(ts time.Time, payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    cw.src.IP.To4(),
		DstIP:    cw.dst.IP.To4(),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(cw.src.Port),
		DstPort: layers.UDPPort(cw.dst.Port),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("failed to serialise packet: %w", err)
	}
	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
	return cw.w.WritePacket(ci, data)
}

// WriteFrame splits c into datagrams and records them interval apart,
// starting at ts. It returns the timestamp after the last datagram.
func (cw *CaptureWriter) WriteFrame(ts time.Time, seq uint32, c l1cloud.Cloud, chunkSize int, interval time.Duration) (time.Time, error) {
	datagrams, err := SplitCloud(seq, c, chunkSize)
	if err != nil {
		return ts, err
	}
	for _, d := range datagrams {
		if err := cw.WriteDatagram(ts, d); err != nil {
			return ts, err
		}
		ts = ts.Add(interval)
	}
	return ts, nil
}
