package visualiser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/pickplace/internal/monitoring"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
)

// Config holds the visualiser server settings.
type Config struct {
	// ListenAddr is the TCP address to serve on, e.g. "localhost:50061".
	ListenAddr string
	// MaxClients bounds concurrent streams; 0 means no limit.
	MaxClients int
	// ClientBuffer is the per-client queue depth. A client that falls
	// this far behind misses frames.
	ClientBuffer int
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "localhost:50061",
		MaxClients:   5,
		ClientBuffer: 8,
	}
}

// maxMsgSize allows full cluster clouds in a summary.
const maxMsgSize = 16 * 1024 * 1024

type client struct {
	id      string
	opts    StreamOptions
	outcome chan pipeline.Outcome
}

// Publisher serves the Visualiser service and fans frame outcomes out to
// every connected stream. It is a pipeline sink.
type Publisher struct {
	cfg    Config
	server *grpc.Server

	mu      sync.RWMutex
	clients map[string]*client

	frames  atomic.Uint64
	dropped atomic.Uint64
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher returns a Publisher with the service registered on a new
// gRPC server.
func NewPublisher(cfg Config) *Publisher {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = DefaultConfig().ClientBuffer
	}
	p := &Publisher{
		cfg:     cfg,
		clients: make(map[string]*client),
		stopCh:  make(chan struct{}),
		server: grpc.NewServer(
			grpc.MaxRecvMsgSize(maxMsgSize),
			grpc.MaxSendMsgSize(maxMsgSize),
		),
	}
	RegisterService(p.server, p)
	return p
}

// Start listens on cfg.ListenAddr and serves in the background.
func (p *Publisher) Start() error {
	lis, err := net.Listen("tcp", p.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.Serve(lis)
}

// Serve serves on lis in the background.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("visualiser already running")
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		monitoring.Logf("[visualiser] gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			monitoring.Logf("[visualiser] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop ends every stream and waits for the server to exit. A stopped
// Publisher cannot be restarted.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	p.server.GracefulStop()
	p.wg.Wait()
	monitoring.Logf("[visualiser] gRPC server stopped")
}

// Consume queues o for every connected client without blocking. Clients
// whose queue is full miss the frame.
func (p *Publisher) Consume(ctx context.Context, o pipeline.Outcome) error {
	p.frames.Add(1)
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.clients {
		select {
		case c.outcome <- o:
		default:
			p.dropped.Add(1)
		}
	}
	return nil
}

// StreamFrames sends one summary per frame until the client goes away.
func (p *Publisher) StreamFrames(req *structpb.Struct, stream FrameStreamServer) error {
	c, err := p.addClient(ParseStreamOptions(req))
	if err != nil {
		return err
	}
	defer p.removeClient(c.id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case o := <-c.outcome:
			msg, err := Summary(o, c.opts)
			if err != nil {
				return status.Errorf(codes.Internal, "summarise frame %s: %v", o.Frame.ID, err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func (p *Publisher) addClient(opts StreamOptions) (*client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg.MaxClients > 0 && len(p.clients) >= p.cfg.MaxClients {
		return nil, status.Errorf(codes.ResourceExhausted, "client limit %d reached", p.cfg.MaxClients)
	}
	c := &client{
		id:      uuid.NewString(),
		opts:    opts,
		outcome: make(chan pipeline.Outcome, p.cfg.ClientBuffer),
	}
	p.clients[c.id] = c
	monitoring.Logf("[visualiser] client %s connected (total %d)", c.id, len(p.clients))
	return c, nil
}

func (p *Publisher) removeClient(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, id)
	monitoring.Logf("[visualiser] client %s disconnected (remaining %d)", id, len(p.clients))
}

// Stats are publisher counters.
type Stats struct {
	Frames  uint64
	Dropped uint64
	Clients int
	Running bool
}

// Stats returns a snapshot of the counters.
func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	n := len(p.clients)
	p.mu.RUnlock()
	return Stats{
		Frames:  p.frames.Load(),
		Dropped: p.dropped.Load(),
		Clients: n,
		Running: p.running.Load(),
	}
}
