package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
)

// Output topic names, appended to the configured prefix.
const (
	TopicTable           = "pcl_table"
	TopicObjects         = "pcl_objects"
	TopicClusters        = "pcl_cluster"
	TopicMarkers         = "object_markers"
	TopicDetectedObjects = "detected_objects"
)

// OutputPublisher is a pipeline sink that publishes each completed
// frame's clouds, markers and detections.
type OutputPublisher struct {
	pub    Publisher
	prefix string
}

// NewOutputPublisher publishes through pub under prefix, e.g. "pickplace/".
func NewOutputPublisher(pub Publisher, prefix string) *OutputPublisher {
	return &OutputPublisher{pub: pub, prefix: prefix}
}

// Topic returns the full topic for an output name.
func (p *OutputPublisher) Topic(name string) string { return p.prefix + name }

// Consume publishes a completed frame. Failed frames publish nothing.
// Every output is attempted even when an earlier one fails.
func (p *OutputPublisher) Consume(ctx context.Context, o pipeline.Outcome) error {
	if !o.OK() {
		return nil
	}
	r := o.Result
	var errs []error
	send := func(name string, payload []byte) {
		if err := p.pub.Publish(p.Topic(name), payload); err != nil {
			errs = append(errs, err)
		}
	}

	send(TopicTable, l1cloud.EncodeCloud(r.Table))
	send(TopicObjects, l1cloud.EncodeCloud(r.Objects))
	send(TopicClusters, l1cloud.EncodeCloud(r.ClusterCloud))

	if r.Classified {
		if b, err := EncodeMarkers(r.Markers); err != nil {
			errs = append(errs, err)
		} else {
			send(TopicMarkers, b)
		}
		if b, err := EncodeDetections(r.Detections); err != nil {
			errs = append(errs, err)
		} else {
			send(TopicDetectedObjects, b)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("frame %s: %w", r.FrameID, errors.Join(errs...))
	}
	tracef("frame %s published under %s", r.FrameID, p.prefix)
	return nil
}
