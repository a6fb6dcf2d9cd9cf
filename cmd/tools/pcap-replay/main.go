// Package main replays a capture of chunked UDP cloud frames through the
// tabletop pipeline, or records binary cloud files into such a capture.
//
// Replay:
//
//	pcap-replay -pcap frames.pcap -scene config/scenes/pick_list_2.yaml -model model.json
//
// Record:
//
//	pcap-replay -record frames.pcap scene_a.bin scene_b.bin
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/banshee-data/pickplace/internal/config"
	"github.com/banshee-data/pickplace/internal/db"
	"github.com/banshee-data/pickplace/internal/fsutil"
	"github.com/banshee-data/pickplace/internal/security"
	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/output"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
	"github.com/banshee-data/pickplace/internal/tabletop/storage/sqlite"
	"github.com/banshee-data/pickplace/internal/tabletop/transport"
)

// Config holds the replay or record settings.
type Config struct {
	PCAPFile   string
	TuningFile string
	ModelFile  string
	SceneFile  string
	OutputFile string
	DBPath     string
	UDPPort    int
	Realtime   bool
	Speed      float64
	JSON       bool
	Verbose    bool

	// Record mode
	RecordFile string
	CloudFiles []string
	Interval   time.Duration
	ChunkSize  int
}

// ReplaySummary is printed after a replay.
type ReplaySummary struct {
	PCAPFile      string         `json:"pcap_file"`
	Packets       int            `json:"packets"`
	Matched       int            `json:"matched"`
	Rejected      int            `json:"rejected"`
	Frames        int            `json:"frames"`
	Processed     int            `json:"processed"`
	Failed        int            `json:"failed"`
	FailedStages  map[string]int `json:"failed_stages,omitempty"`
	Requests      int            `json:"requests"`
	Labels        map[string]int `json:"labels"`
	ResultWritten bool           `json:"result_written"`
	DurationSecs  float64        `json:"duration_secs"`
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.PCAPFile, "pcap", "", "Capture to replay")
	flag.StringVar(&cfg.TuningFile, "config", config.DefaultConfigPath, "Tuning config JSON")
	flag.StringVar(&cfg.ModelFile, "model", "", "Recognition model JSON")
	flag.StringVar(&cfg.SceneFile, "scene", "config/scenes/pick_list_1.yaml", "Scene pick list YAML")
	flag.StringVar(&cfg.OutputFile, "output", "", "Write the result record here (skipped if it exists)")
	flag.StringVar(&cfg.DBPath, "db", "", "Record frame history to this SQLite database")
	flag.IntVar(&cfg.UDPPort, "port", transport.DefaultUDPPort, "UDP destination port to replay (0 for any)")
	flag.BoolVar(&cfg.Realtime, "realtime", false, "Reproduce capture timing")
	flag.Float64Var(&cfg.Speed, "speed", 1.0, "Realtime speed multiplier")
	flag.BoolVar(&cfg.JSON, "json", false, "Print the summary as JSON")
	flag.BoolVar(&cfg.Verbose, "v", false, "Print one line per frame")
	flag.StringVar(&cfg.RecordFile, "record", "", "Write the cloud files given as arguments to this capture instead of replaying")
	flag.DurationVar(&cfg.Interval, "interval", 100*time.Millisecond, "Record mode: time between frames")
	flag.IntVar(&cfg.ChunkSize, "chunk", transport.DefaultChunkSize, "Record mode: datagram payload size")
	flag.Parse()
	cfg.CloudFiles = flag.Args()

	if cfg.RecordFile != "" {
		if err := record(cfg); err != nil {
			log.Fatalf("record failed: %v", err)
		}
		log.Printf("wrote %d frames to %s", len(cfg.CloudFiles), cfg.RecordFile)
		return
	}

	if cfg.PCAPFile == "" {
		fmt.Fprintln(os.Stderr, "usage: pcap-replay -pcap <file> [flags] | -record <file> <cloud>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline.SetLogWriters(os.Stderr, nil, nil)
	if cfg.Verbose {
		pipeline.SetLogWriters(os.Stderr, os.Stderr, nil)
	}

	tuning, err := config.LoadTuningConfig(cfg.TuningFile)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	proc, err := pipeline.NewProcessorFromSetup(pipeline.Setup{
		Tuning:    tuning,
		ModelPath: cfg.ModelFile,
		ScenePath: cfg.SceneFile,
	})
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	var sinks []pipeline.Sink
	var writer *output.ResultWriter
	if cfg.OutputFile != "" {
		if err := security.ValidateOutputPath(cfg.OutputFile); err != nil {
			log.Fatalf("invalid -output: %v", err)
		}
		fsys := fsutil.OSFileSystem{}
		writer = output.NewResultWriter(fsys, cfg.OutputFile, output.NewOnceGuard(fsys.Exists(cfg.OutputFile)))
		sinks = append(sinks, writer)
	}
	if cfg.DBPath != "" {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()
		sinks = append(sinks, sqlite.NewFrameStore(database.DB))
	}

	f, err := os.Open(cfg.PCAPFile)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer f.Close()

	summary, err := replay(ctx, f, cfg, proc, sinks...)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	summary.PCAPFile = cfg.PCAPFile
	if writer != nil {
		summary.ResultWritten = writer.Guard().Done()
	}
	if err := printSummary(os.Stdout, summary, cfg.JSON); err != nil {
		log.Fatalf("failed to print summary: %v", err)
	}
}

// replay feeds every reassembled frame through proc synchronously, so
// no frame is dropped regardless of replay speed.
func replay(ctx context.Context, r io.Reader, cfg Config, proc *pipeline.Processor, sinks ...pipeline.Sink) (*ReplaySummary, error) {
	summary := &ReplaySummary{
		Labels:       make(map[string]int),
		FailedStages: make(map[string]int),
	}
	tally := pipeline.SinkFunc(func(_ context.Context, o pipeline.Outcome) error {
		if !o.OK() {
			summary.Failed++
			stage := "unknown"
			var se *pipeline.StageError
			if errors.As(o.Err, &se) {
				stage = se.Stage
			}
			summary.FailedStages[stage]++
			if cfg.Verbose {
				fmt.Fprintf(os.Stderr, "frame %d: failed at %s: %v\n", o.Frame.Seq, stage, o.Err)
			}
			return nil
		}
		summary.Processed++
		summary.Requests += len(o.Result.Requests)
		for _, l := range o.Result.Labels() {
			summary.Labels[l]++
		}
		if cfg.Verbose {
			fmt.Fprintf(os.Stderr, "frame %d: %d points, %d clusters, labels=%v, %d requests\n",
				o.Frame.Seq, o.Result.InputPoints, len(o.Result.Clusters), o.Result.Labels(), len(o.Result.Requests))
		}
		return nil
	})

	runner := pipeline.NewRunner(proc, append(sinks, tally)...)
	handler := func(c l1cloud.Cloud) {
		runner.Offer(c)
		runner.Drain(ctx)
	}

	start := time.Now()
	stats, err := transport.Replay(ctx, r, transport.ReplayConfig{
		Port:     cfg.UDPPort,
		Realtime: cfg.Realtime,
		Speed:    cfg.Speed,
	}, handler)
	summary.Packets = stats.Packets
	summary.Matched = stats.Matched
	summary.Rejected = stats.Rejected
	summary.Frames = stats.Frames
	summary.DurationSecs = time.Since(start).Seconds()
	if len(summary.FailedStages) == 0 {
		summary.FailedStages = nil
	}
	return summary, err
}

// record writes each cloud file as one frame, cfg.Interval apart.
func record(cfg Config) error {
	if len(cfg.CloudFiles) == 0 {
		return errors.New("no cloud files given")
	}
	if err := security.ValidateOutputPath(cfg.RecordFile); err != nil {
		return err
	}
	out, err := os.Create(cfg.RecordFile)
	if err != nil {
		return err
	}
	defer out.Close()

	clouds := make([]l1cloud.Cloud, 0, len(cfg.CloudFiles))
	for _, path := range cfg.CloudFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		c, err := l1cloud.DecodeCloud(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		clouds = append(clouds, c)
	}
	if err := writeCapture(out, clouds, cfg); err != nil {
		return err
	}
	return out.Close()
}

func writeCapture(w io.Writer, clouds []l1cloud.Cloud, cfg Config) error {
	port := cfg.UDPPort
	if port == 0 {
		port = transport.DefaultUDPPort
	}
	cw, err := transport.NewCaptureWriter(w,
		&net.UDPAddr{IP: net.IPv4(192, 168, 1, 10), Port: 40000},
		&net.UDPAddr{IP: net.IPv4(192, 168, 1, 20), Port: port})
	if err != nil {
		return err
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = transport.DefaultChunkSize
	}
	ts := time.Unix(0, 0).UTC()
	for i, c := range clouds {
		frameStart := ts.Add(time.Duration(i) * cfg.Interval)
		if _, err := cw.WriteFrame(frameStart, uint32(i+1), c, chunk, 0); err != nil {
			return fmt.Errorf("frame %d: %w", i+1, err)
		}
	}
	return nil
}

func printSummary(w io.Writer, s *ReplaySummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "capture:   %s\n", s.PCAPFile)
	fmt.Fprintf(w, "packets:   %d (%d matched, %d rejected)\n", s.Packets, s.Matched, s.Rejected)
	fmt.Fprintf(w, "frames:    %d reassembled, %d processed, %d failed\n", s.Frames, s.Processed, s.Failed)
	fmt.Fprintf(w, "requests:  %d\n", s.Requests)
	labels := make([]string, 0, len(s.Labels))
	for l := range s.Labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(w, "  %-12s %d\n", l, s.Labels[l])
	}
	fmt.Fprintf(w, "result:    written=%t\n", s.ResultWritten)
	fmt.Fprintf(w, "duration:  %.2fs\n", s.DurationSecs)
	return nil
}
