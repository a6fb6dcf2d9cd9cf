package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
)

// Frame statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// FrameRecord is one processed or failed frame.
type FrameRecord struct {
	FrameID        string      `json:"frame_id"`
	Seq            uint64      `json:"seq"`
	ReceivedAt     int64       `json:"received_at"`
	Status         string      `json:"status"`
	Stage          string      `json:"stage,omitempty"`
	Error          string      `json:"error,omitempty"`
	InputPoints    int         `json:"input_points"`
	FilteredPoints int         `json:"filtered_points"`
	TablePoints    int         `json:"table_points"`
	ObjectPoints   int         `json:"object_points"`
	ClusterCount   int         `json:"cluster_count"`
	TooSmall       int         `json:"too_small"`
	TooLarge       int         `json:"too_large"`
	Plane          *[4]float64 `json:"plane,omitempty"`
	Classified     bool        `json:"classified"`
	DurationNanos  int64       `json:"duration_ns"`
	CreatedAt      int64       `json:"created_at"`
}

// DetectionRecord is one labelled cluster of a frame.
type DetectionRecord struct {
	DetectionID  string  `json:"detection_id"`
	FrameID      string  `json:"frame_id"`
	ClusterIndex int     `json:"cluster_index"`
	Label        string  `json:"label"`
	PointCount   int     `json:"point_count"`
	CentroidX    float64 `json:"centroid_x"`
	CentroidY    float64 `json:"centroid_y"`
	CentroidZ    float64 `json:"centroid_z"`
	CreatedAt    int64   `json:"created_at"`
}

// RequestRecord is one pick request of a frame.
type RequestRecord struct {
	RequestID  string  `json:"request_id"`
	FrameID    string  `json:"frame_id"`
	Position   int     `json:"position"`
	SceneID    int     `json:"scene_id"`
	ArmName    string  `json:"arm_name"`
	ObjectName string  `json:"object_name"`
	PickX      float64 `json:"pick_x"`
	PickY      float64 `json:"pick_y"`
	PickZ      float64 `json:"pick_z"`
	PlaceX     float64 `json:"place_x"`
	PlaceY     float64 `json:"place_y"`
	PlaceZ     float64 `json:"place_z"`
	CreatedAt  int64   `json:"created_at"`
}

// FrameStore provides persistence for frame history.
type FrameStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewFrameStore creates a new FrameStore.
func NewFrameStore(db *sql.DB) *FrameStore {
	return &FrameStore{db: db, now: time.Now}
}

// Consume implements pipeline.Sink by recording every outcome.
func (s *FrameStore) Consume(_ context.Context, o pipeline.Outcome) error {
	return s.Record(o)
}

// Record writes the frame row plus its detections and requests in one
// transaction.
func (s *FrameStore) Record(o pipeline.Outcome) error {
	created := s.now().UnixNano()
	frame := frameRecordFrom(o, created)

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := insertFrame(tx, frame); err != nil {
			return fmt.Errorf("insert frame: %w", err)
		}
		if o.OK() {
			for i, d := range o.Result.Detections {
				_, err := tx.Exec(`
					INSERT INTO tabletop_detections (
						detection_id, frame_id, cluster_index, label, point_count,
						centroid_x, centroid_y, centroid_z, created_at
					) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					uuid.New().String(), frame.FrameID, i, d.Label, len(d.Cloud),
					d.Centroid.X, d.Centroid.Y, d.Centroid.Z, created)
				if err != nil {
					return fmt.Errorf("insert detection: %w", err)
				}
			}
			for i, r := range o.Result.Requests {
				_, err := tx.Exec(`
					INSERT INTO tabletop_requests (
						request_id, frame_id, position, scene_id, arm_name, object_name,
						pick_x, pick_y, pick_z, place_x, place_y, place_z, created_at
					) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					uuid.New().String(), frame.FrameID, i, r.SceneID, r.ArmName, r.ObjectName,
					r.PickPose.Position.X, r.PickPose.Position.Y, r.PickPose.Position.Z,
					r.PlacePose.Position.X, r.PlacePose.Position.Y, r.PlacePose.Position.Z, created)
				if err != nil {
					return fmt.Errorf("insert request: %w", err)
				}
			}
		}
		return tx.Commit()
	})
}

func frameRecordFrom(o pipeline.Outcome, created int64) *FrameRecord {
	f := &FrameRecord{
		FrameID:     o.Frame.ID,
		Seq:         o.Frame.Seq,
		ReceivedAt:  o.Frame.Received.UnixNano(),
		Status:      StatusOK,
		InputPoints: len(o.Frame.Cloud),
		CreatedAt:   created,
	}
	if f.FrameID == "" {
		f.FrameID = uuid.New().String()
	}
	if o.Frame.Received.IsZero() {
		f.ReceivedAt = created
	}
	if !o.OK() {
		f.Status = StatusFailed
		var se *pipeline.StageError
		if errors.As(o.Err, &se) {
			f.Stage = se.Stage
			f.Error = se.Err.Error()
		} else if o.Err != nil {
			f.Error = o.Err.Error()
		}
		return f
	}
	r := o.Result
	plane := r.Plane.Coefficients()
	f.FilteredPoints = len(r.Filtered)
	f.TablePoints = len(r.Table)
	f.ObjectPoints = len(r.Objects)
	f.ClusterCount = len(r.Clusters)
	f.TooSmall = r.TooSmall
	f.TooLarge = r.TooLarge
	f.Plane = &plane
	f.Classified = r.Classified
	f.DurationNanos = r.Duration.Nanoseconds()
	return f
}

func insertFrame(tx *sql.Tx, f *FrameRecord) error {
	var a, b, c, d interface{}
	if f.Plane != nil {
		a, b, c, d = f.Plane[0], f.Plane[1], f.Plane[2], f.Plane[3]
	}
	_, err := tx.Exec(`
		INSERT INTO tabletop_frames (
			frame_id, seq, received_at, status, stage, error,
			input_points, filtered_points, table_points, object_points,
			cluster_count, too_small, too_large,
			plane_a, plane_b, plane_c, plane_d,
			classified, duration_ns, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FrameID, int64(f.Seq), f.ReceivedAt, f.Status, nullString(f.Stage), nullString(f.Error),
		f.InputPoints, f.FilteredPoints, f.TablePoints, f.ObjectPoints,
		f.ClusterCount, f.TooSmall, f.TooLarge,
		a, b, c, d,
		f.Classified, f.DurationNanos, f.CreatedAt,
	)
	return err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

const frameColumns = `
	frame_id, seq, received_at, status, stage, error,
	input_points, filtered_points, table_points, object_points,
	cluster_count, too_small, too_large,
	plane_a, plane_b, plane_c, plane_d,
	classified, duration_ns, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFrame(row scanner) (*FrameRecord, error) {
	var f FrameRecord
	var seq int64
	var stage, errStr sql.NullString
	var a, b, c, d sql.NullFloat64
	err := row.Scan(
		&f.FrameID, &seq, &f.ReceivedAt, &f.Status, &stage, &errStr,
		&f.InputPoints, &f.FilteredPoints, &f.TablePoints, &f.ObjectPoints,
		&f.ClusterCount, &f.TooSmall, &f.TooLarge,
		&a, &b, &c, &d,
		&f.Classified, &f.DurationNanos, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Seq = uint64(seq)
	f.Stage = stage.String
	f.Error = errStr.String
	if a.Valid {
		f.Plane = &[4]float64{a.Float64, b.Float64, c.Float64, d.Float64}
	}
	return &f, nil
}

// Get returns one frame by ID, or sql.ErrNoRows.
func (s *FrameStore) Get(frameID string) (*FrameRecord, error) {
	row := s.db.QueryRow(`SELECT `+frameColumns+` FROM tabletop_frames WHERE frame_id = ?`, frameID)
	f, err := scanFrame(row)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListRecent returns up to limit frames, newest first.
func (s *FrameStore) ListRecent(limit int) ([]*FrameRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+frameColumns+` FROM tabletop_frames ORDER BY created_at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var frames []*FrameRecord
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Detections returns a frame's detections in cluster order.
func (s *FrameStore) Detections(frameID string) ([]*DetectionRecord, error) {
	rows, err := s.db.Query(`
		SELECT detection_id, frame_id, cluster_index, label, point_count,
		       centroid_x, centroid_y, centroid_z, created_at
		FROM tabletop_detections
		WHERE frame_id = ?
		ORDER BY cluster_index`, frameID)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var out []*DetectionRecord
	for rows.Next() {
		var d DetectionRecord
		if err := rows.Scan(&d.DetectionID, &d.FrameID, &d.ClusterIndex, &d.Label, &d.PointCount,
			&d.CentroidX, &d.CentroidY, &d.CentroidZ, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Requests returns a frame's pick requests in emission order.
func (s *FrameStore) Requests(frameID string) ([]*RequestRecord, error) {
	rows, err := s.db.Query(`
		SELECT request_id, frame_id, position, scene_id, arm_name, object_name,
		       pick_x, pick_y, pick_z, place_x, place_y, place_z, created_at
		FROM tabletop_requests
		WHERE frame_id = ?
		ORDER BY position`, frameID)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []*RequestRecord
	for rows.Next() {
		var r RequestRecord
		if err := rows.Scan(&r.RequestID, &r.FrameID, &r.Position, &r.SceneID, &r.ArmName, &r.ObjectName,
			&r.PickX, &r.PickY, &r.PickZ, &r.PlaceX, &r.PlaceY, &r.PlaceZ, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Prune deletes frames created before cutoff, with their detections and
// requests. It returns the number of frames removed.
func (s *FrameStore) Prune(cutoff time.Time) (int64, error) {
	var n int64
	err := retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM tabletop_frames WHERE created_at < ?`, cutoff.UnixNano())
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
