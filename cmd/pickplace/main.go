package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/pickplace/internal/config"
	"github.com/banshee-data/pickplace/internal/db"
	"github.com/banshee-data/pickplace/internal/fsutil"
	"github.com/banshee-data/pickplace/internal/httputil"
	"github.com/banshee-data/pickplace/internal/security"
	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/monitor"
	"github.com/banshee-data/pickplace/internal/tabletop/output"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
	"github.com/banshee-data/pickplace/internal/tabletop/storage/sqlite"
	"github.com/banshee-data/pickplace/internal/tabletop/transport"
	"github.com/banshee-data/pickplace/internal/tabletop/visualiser"
	"github.com/banshee-data/pickplace/internal/version"
)

var (
	tuningPath  = flag.String("config", config.DefaultConfigPath, "Tuning config JSON")
	modelPath   = flag.String("model", "", "Recognition model JSON (empty disables classification)")
	scenePath   = flag.String("scene", "config/scenes/pick_list_1.yaml", "Scene pick list YAML")
	outputPath  = flag.String("output", "", "Result record path (default output_<scene>.yaml)")
	mqttBroker  = flag.String("mqtt", "", "MQTT broker host:port; enables the MQTT input and output topics")
	mqttClient  = flag.String("mqtt-client-id", "pickplace", "MQTT client id")
	udpListen   = flag.String("udp-listen", "", "UDP address for chunked frames, e.g. :5005 (used when -mqtt is empty)")
	udpRcvBuf   = flag.Int("udp-rcvbuf", 4<<20, "UDP socket receive buffer in bytes")
	dbPath      = flag.String("db", "", "SQLite frame history path (empty disables history)")
	listen      = flag.String("listen", ":8082", "Monitor HTTP listen address (empty disables)")
	grpcListen  = flag.String("grpc-listen", "", "Visualiser gRPC listen address (empty disables)")
	maxClients  = flag.Int("grpc-max-clients", 5, "Maximum concurrent visualiser streams")
	logLevel    = flag.String("log", "ops", "Log streams to enable: ops, diag or trace")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *mqttBroker == "" && *udpListen == "" {
		log.Fatal("an input is required: set -mqtt or -udp-listen")
	}
	configureLogging(os.Stderr, *logLevel)

	tuning, err := config.LoadTuningConfig(*tuningPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	fsys := fsutil.OSFileSystem{}
	proc, err := pipeline.NewProcessorFromSetup(pipeline.Setup{
		Tuning:    tuning,
		ModelPath: *modelPath,
		ScenePath: *scenePath,
		FS:        fsys,
		Client:    httputil.NewStandardClient(&http.Client{}),
	})
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}
	scene := proc.Scene()
	log.Printf("pickplace %s: scene %d with %d objects, tuning %s", version.Version, scene.SceneID, len(scene.Objects), *tuningPath)

	runner := pipeline.NewRunner(proc)

	resultPath := *outputPath
	if resultPath == "" {
		resultPath = output.DefaultPath(scene.SceneID)
	}
	if err := security.ValidateOutputPath(resultPath); err != nil {
		log.Fatalf("invalid -output: %v", err)
	}
	guard := output.NewOnceGuard(fsys.Exists(resultPath))
	if guard.Done() {
		log.Printf("result %s already exists; it will not be rewritten", resultPath)
	}
	runner.AddSink(output.NewResultWriter(fsys, resultPath, guard))

	var history monitor.FrameHistory
	if *dbPath != "" {
		if err := security.ValidateOutputPath(*dbPath); err != nil {
			log.Fatalf("invalid -db: %v", err)
		}
		database, err := db.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()
		store := sqlite.NewFrameStore(database.DB)
		runner.AddSink(store)
		history = store
	}

	var mqttClientConn *transport.MQTTClient
	if *mqttBroker != "" {
		mqttClientConn = transport.NewMQTTClient(transport.MQTTConfig{
			Broker:     *mqttBroker,
			ClientID:   *mqttClient,
			InputTopic: tuning.GetInputTopic(),
		})
		runner.AddSink(transport.NewOutputPublisher(mqttClientConn, tuning.GetTopicPrefix()))
	}

	var vis *visualiser.Publisher
	if *grpcListen != "" {
		cfg := visualiser.DefaultConfig()
		cfg.ListenAddr = *grpcListen
		cfg.MaxClients = *maxClients
		vis = visualiser.NewPublisher(cfg)
		runner.AddSink(vis)
	}

	latest := &monitor.LatestFrame{}
	runner.AddSink(latest)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	offer := func(c l1cloud.Cloud) { runner.Offer(c) }

	// frame loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("runner error: %v", err)
		}
		s := runner.Stats()
		log.Printf("runner routine terminated: offered=%d processed=%d failed=%d dropped=%d",
			s.Offered, s.Processed, s.Failed, s.Dropped)
	}()

	if mqttClientConn != nil {
		if err := mqttClientConn.Connect(ctx); err != nil {
			log.Fatalf("failed to connect to MQTT broker %s: %v", *mqttBroker, err)
		}
		if err := mqttClientConn.Subscribe(ctx, offer); err != nil {
			log.Fatalf("failed to subscribe to %s: %v", tuning.GetInputTopic(), err)
		}
		log.Printf("subscribed to %s on %s", tuning.GetInputTopic(), *mqttBroker)

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			mqttClientConn.Disconnect()
			log.Print("mqtt routine terminated")
		}()
	} else {
		listener := transport.NewUDPListener(transport.UDPListenerConfig{
			Address: *udpListen,
			RcvBuf:  *udpRcvBuf,
			Handler: offer,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("UDP listener error: %v", err)
			}
			s := listener.Stats()
			log.Printf("udp routine terminated: frames=%d superseded=%d malformed=%d",
				s.Frames, s.Superseded, s.Malformed)
		}()
	}

	if vis != nil {
		if err := vis.Start(); err != nil {
			log.Fatalf("failed to start visualiser: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			vis.Stop()
			log.Print("visualiser routine terminated")
		}()
	}

	if *listen != "" {
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address: *listen,
			SceneID: scene.SceneID,
			Runner:  runner,
			Latest:  latest,
			History: history,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(ctx); err != nil {
				log.Printf("monitor server error: %v", err)
			}
			log.Print("HTTP server routine stopped")
		}()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// configureLogging enables the ops stream always, diag from "diag" and
// trace only at "trace".
func configureLogging(w io.Writer, level string) {
	var diag, trace io.Writer
	switch level {
	case "trace":
		diag, trace = w, w
	case "diag":
		diag = w
	}
	pipeline.SetLogWriters(w, diag, trace)
	transport.SetLogWriters(w, diag, trace)
}
