package l5recognition

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pickplace/internal/httputil"
	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/testutil"
)

func TestPCANormals_FlatPlaneFacesViewpoint(t *testing.T) {
	plane := testutil.TablePlane(0, 0, 0.7, 10, 0.01, 0, 1)
	est := PCANormals{K: 8, Viewpoint: r3.Vector{Z: 2}}

	normals, err := est.EstimateNormals(context.Background(), plane)
	require.NoError(t, err)
	require.Len(t, normals, len(plane))
	for i, n := range normals {
		assert.InDelta(t, 1.0, n.Z, 1e-6, "normal %d = %v", i, n)
	}

	below := PCANormals{K: 8, Viewpoint: r3.Vector{Z: -2}}
	normals, err = below.EstimateNormals(context.Background(), plane)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, normals[0].Z, 1e-6)
}

func TestPCANormals_TooFewPoints(t *testing.T) {
	normals, err := PCANormals{K: 8}.EstimateNormals(context.Background(), l1cloud.Cloud{{X: 1}, {X: 2}})
	require.NoError(t, err)
	for _, n := range normals {
		assert.Equal(t, r3.Vector{}, n)
	}
}

func TestPCANormals_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PCANormals{K: 8}.EstimateNormals(ctx, testutil.GridCube(l1cloud.Point{}, 3, 0.01))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteNormals_Success(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, `{"normals":[[0,0,1],[0,1,0]]}`)
	est := RemoteNormals{URL: "http://normals.local/estimate", Client: mock}
	cloud := l1cloud.Cloud{{X: 1}, {X: 2}}

	normals, err := est.EstimateNormals(context.Background(), cloud)
	require.NoError(t, err)
	assert.Equal(t, []r3.Vector{{Z: 1}, {Y: 1}}, normals)

	require.Equal(t, 1, mock.RequestCount())
	assert.Equal(t, http.MethodPost, mock.Requests[0].Method)
	decoded, err := l1cloud.DecodeCloud(mock.Bodies[0])
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
	_, hasDeadline := mock.Requests[0].Context().Deadline()
	assert.True(t, hasDeadline, "request should carry a timeout")
}

func TestRemoteNormals_Failures(t *testing.T) {
	cloud := l1cloud.Cloud{{X: 1}}
	tests := []struct {
		name string
		mock *httputil.MockHTTPClient
	}{
		{"status", httputil.NewMockHTTPClient().AddResponse(http.StatusServiceUnavailable, "down")},
		{"transport", httputil.NewMockHTTPClient().AddErrorResponse(errors.New("refused"))},
		{"count mismatch", httputil.NewMockHTTPClient().AddResponse(http.StatusOK, `{"normals":[]}`)},
		{"bad json", httputil.NewMockHTTPClient().AddResponse(http.StatusOK, `not json`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RemoteNormals{URL: "http://normals.local", Client: tt.mock, Timeout: time.Second}.
				EstimateNormals(context.Background(), cloud)
			assert.Error(t, err)
		})
	}
}

func TestRemoteNormals_Timeout(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}
	_, err := RemoteNormals{URL: "http://normals.local", Client: mock, Timeout: 10 * time.Millisecond}.
		EstimateNormals(context.Background(), l1cloud.Cloud{{X: 1}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFitNormal_IsUnit(t *testing.T) {
	cube := testutil.NoisyCube(l1cloud.Point{}, 0.1, 50, 2)
	normals, err := PCANormals{K: 10}.EstimateNormals(context.Background(), cube)
	require.NoError(t, err)
	for _, n := range normals {
		if n.Norm2() == 0 {
			continue
		}
		assert.InDelta(t, 1.0, math.Sqrt(n.Norm2()), 1e-9)
	}
}
