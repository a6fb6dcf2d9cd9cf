package transport

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
	"github.com/banshee-data/pickplace/internal/testutil"
)

func TestMarkers_RoundTrip(t *testing.T) {
	markers := []pipeline.Marker{
		{ID: 0, Label: "soap", Position: r3.Vector{X: 0.5, Y: -0.25, Z: 1.135}},
		{ID: 1, Label: "book", Position: r3.Vector{X: 0.75, Y: 0.125, Z: 1.2}},
	}
	b, err := EncodeMarkers(markers)
	require.NoError(t, err)

	got, err := DecodeMarkers(b)
	require.NoError(t, err)
	assert.Equal(t, []MarkerMessage{
		{ID: 0, Label: "soap", X: 0.5, Y: -0.25, Z: 1.135},
		{ID: 1, Label: "book", X: 0.75, Y: 0.125, Z: 1.2},
	}, got)
}

func TestMarkers_Empty(t *testing.T) {
	b, err := EncodeMarkers(nil)
	require.NoError(t, err)
	got, err := DecodeMarkers(b)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDetections_RoundTrip(t *testing.T) {
	soap := testutil.GridCube(l1cloud.Point{X: 1, G: 255}, 2, 0.5)
	objs := []l6picks.DetectedObject{l6picks.NewDetectedObject("soap", soap)}

	b, err := EncodeDetections(objs)
	require.NoError(t, err)
	got, err := DecodeDetections(b)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "soap", got[0].Label)
	assert.Equal(t, soap, got[0].Cloud)
	assert.Equal(t, objs[0].Centroid, got[0].Centroid)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := DecodeMarkers([]byte{0xc1})
	assert.Error(t, err)
	_, err = DecodeDetections([]byte{0xc1})
	assert.Error(t, err)
}

func TestDecodeDetections_BadCloud(t *testing.T) {
	msgs := []DetectedObjectMessage{{Label: "book", Cloud: []byte("nope")}}
	b, err := msgpack.Marshal(msgs)
	require.NoError(t, err)
	_, err = DecodeDetections(b)
	assert.ErrorIs(t, err, l1cloud.ErrMalformedCloud)
}
