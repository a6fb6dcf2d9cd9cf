package l5recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pickplace/internal/httputil"
	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// DefaultRemoteTimeout bounds a single call to the normal service.
const DefaultRemoteTimeout = 2 * time.Second

// RemoteNormals asks an out-of-process service for normals. The request
// body is the binary cloud encoding; the response is
// {"normals": [[x, y, z], ...]} with one entry per point.
type RemoteNormals struct {
	URL     string
	Client  httputil.HTTPClient
	Timeout time.Duration
}

type remoteNormalsResponse struct {
	Normals [][3]float64 `json:"normals"`
}

func (e RemoteNormals) EstimateNormals(ctx context.Context, c l1cloud.Cloud) ([]r3.Vector, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(l1cloud.EncodeCloud(c)))
	if err != nil {
		return nil, fmt.Errorf("build normals request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	client := e.Client
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("normals request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("normals service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var decoded remoteNormalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode normals response: %w", err)
	}
	if len(decoded.Normals) != len(c) {
		return nil, fmt.Errorf("normals service returned %d normals for %d points", len(decoded.Normals), len(c))
	}
	out := make([]r3.Vector, len(c))
	for i, n := range decoded.Normals {
		out[i] = r3.Vector{X: n[0], Y: n[1], Z: n[2]}
	}
	return out, nil
}
