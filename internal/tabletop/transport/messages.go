package transport

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
)

// MarkerMessage is one label marker on the object_markers topic.
type MarkerMessage struct {
	ID    int     `msgpack:"id"`
	Label string  `msgpack:"label"`
	X     float64 `msgpack:"x"`
	Y     float64 `msgpack:"y"`
	Z     float64 `msgpack:"z"`
}

// DetectedObjectMessage is one entry on the detected_objects topic. Cloud
// holds the object's points in the l1cloud wire format.
type DetectedObjectMessage struct {
	Label string `msgpack:"label"`
	Cloud []byte `msgpack:"cloud"`
}

// EncodeMarkers packs markers as a msgpack array.
func EncodeMarkers(markers []pipeline.Marker) ([]byte, error) {
	msgs := make([]MarkerMessage, len(markers))
	for i, m := range markers {
		msgs[i] = MarkerMessage{
			ID:    m.ID,
			Label: m.Label,
			X:     m.Position.X,
			Y:     m.Position.Y,
			Z:     m.Position.Z,
		}
	}
	b, err := msgpack.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal markers: %w", err)
	}
	return b, nil
}

// DecodeMarkers reverses EncodeMarkers.
func DecodeMarkers(b []byte) ([]MarkerMessage, error) {
	var msgs []MarkerMessage
	if err := msgpack.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal markers: %w", err)
	}
	return msgs, nil
}

// EncodeDetections packs detected objects as a msgpack array.
func EncodeDetections(objs []l6picks.DetectedObject) ([]byte, error) {
	msgs := make([]DetectedObjectMessage, len(objs))
	for i, o := range objs {
		msgs[i] = DetectedObjectMessage{Label: o.Label, Cloud: l1cloud.EncodeCloud(o.Cloud)}
	}
	b, err := msgpack.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal detected objects: %w", err)
	}
	return b, nil
}

// DecodeDetections reverses EncodeDetections. Centroids are recomputed
// from the decoded clouds.
func DecodeDetections(b []byte) ([]l6picks.DetectedObject, error) {
	var msgs []DetectedObjectMessage
	if err := msgpack.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detected objects: %w", err)
	}
	out := make([]l6picks.DetectedObject, len(msgs))
	for i, m := range msgs {
		c, err := l1cloud.DecodeCloud(m.Cloud)
		if err != nil {
			return nil, fmt.Errorf("detected object %d (%s): %w", i, m.Label, err)
		}
		out[i] = l6picks.NewDetectedObject(m.Label, c)
	}
	return out, nil
}
