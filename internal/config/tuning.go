package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/pickplace/internal/tabletop/l2filter"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Normal estimation modes.
const (
	NormalsPCA    = "pca"
	NormalsRemote = "remote"
	NormalsNone   = "none"
)

// TuningConfig represents the root configuration for perception tuning.
// Every field is optional; the Get* methods supply defaults for omitted
// values.
type TuningConfig struct {
	// Preprocessing
	FilterStages     []string `json:"filter_stages,omitempty"`
	VoxelLeafSize    *float64 `json:"voxel_leaf_size,omitempty"`
	CropXMin         *float64 `json:"crop_x_min,omitempty"`
	CropXMax         *float64 `json:"crop_x_max,omitempty"`
	CropYMin         *float64 `json:"crop_y_min,omitempty"`
	CropYMax         *float64 `json:"crop_y_max,omitempty"`
	CropZMin         *float64 `json:"crop_z_min,omitempty"`
	CropZMax         *float64 `json:"crop_z_max,omitempty"`
	OutlierMeanK     *int     `json:"outlier_mean_k,omitempty"`
	OutlierStdDevMul *float64 `json:"outlier_stddev_mul,omitempty"`
	MinFramePoints   *int     `json:"min_frame_points,omitempty"`

	// Surface segmentation
	RansacDistance   *float64 `json:"ransac_distance,omitempty"`
	RansacIterations *int     `json:"ransac_iterations,omitempty"`
	RansacSeed       *int64   `json:"ransac_seed,omitempty"`

	// Clustering
	ClusterTolerance *float64 `json:"cluster_tolerance,omitempty"`
	ClusterMinSize   *int     `json:"cluster_min_size,omitempty"`
	ClusterMaxSize   *int     `json:"cluster_max_size,omitempty"`

	// Recognition
	NormalsMode    *string `json:"normals_mode,omitempty"` // "pca", "remote" or "none"
	NormalsK       *int    `json:"normals_k,omitempty"`
	NormalsURL     *string `json:"normals_url,omitempty"`
	NormalsTimeout *string `json:"normals_timeout,omitempty"` // duration string like "2s"
	RequireModel   *bool   `json:"require_model,omitempty"`

	// Outputs
	LabelOffsetZ *float64 `json:"label_offset_z,omitempty"`
	InputTopic   *string  `json:"input_topic,omitempty"`
	TopicPrefix  *string  `json:"topic_prefix,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/tabletop/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.FilterStages != nil {
		seen := make(map[string]bool, len(c.FilterStages))
		for _, s := range c.FilterStages {
			if !l2filter.KnownStage(s) {
				return fmt.Errorf("unknown filter stage %q", s)
			}
			if seen[s] {
				return fmt.Errorf("filter stage %q listed twice", s)
			}
			seen[s] = true
		}
	}

	if c.VoxelLeafSize != nil && *c.VoxelLeafSize <= 0 {
		return fmt.Errorf("voxel_leaf_size must be positive, got %f", *c.VoxelLeafSize)
	}
	for _, r := range []struct {
		axis     string
		min, max float64
	}{
		{"x", c.GetCropXMin(), c.GetCropXMax()},
		{"y", c.GetCropYMin(), c.GetCropYMax()},
		{"z", c.GetCropZMin(), c.GetCropZMax()},
	} {
		if r.min > r.max {
			return fmt.Errorf("crop_%s_min (%f) exceeds crop_%s_max (%f)", r.axis, r.min, r.axis, r.max)
		}
	}

	if c.OutlierMeanK != nil && *c.OutlierMeanK < 1 {
		return fmt.Errorf("outlier_mean_k must be at least 1, got %d", *c.OutlierMeanK)
	}
	if c.OutlierStdDevMul != nil && *c.OutlierStdDevMul < 0 {
		return fmt.Errorf("outlier_stddev_mul must be non-negative, got %f", *c.OutlierStdDevMul)
	}
	if c.MinFramePoints != nil && *c.MinFramePoints < 0 {
		return fmt.Errorf("min_frame_points must be non-negative, got %d", *c.MinFramePoints)
	}

	if c.RansacDistance != nil && *c.RansacDistance <= 0 {
		return fmt.Errorf("ransac_distance must be positive, got %f", *c.RansacDistance)
	}
	if c.RansacIterations != nil && *c.RansacIterations < 1 {
		return fmt.Errorf("ransac_iterations must be at least 1, got %d", *c.RansacIterations)
	}

	if c.ClusterTolerance != nil && *c.ClusterTolerance <= 0 {
		return fmt.Errorf("cluster_tolerance must be positive, got %f", *c.ClusterTolerance)
	}
	if c.ClusterMinSize != nil && *c.ClusterMinSize < 1 {
		return fmt.Errorf("cluster_min_size must be at least 1, got %d", *c.ClusterMinSize)
	}
	if c.GetClusterMaxSize() > 0 && c.GetClusterMaxSize() < c.GetClusterMinSize() {
		return fmt.Errorf("cluster_max_size (%d) is below cluster_min_size (%d)", c.GetClusterMaxSize(), c.GetClusterMinSize())
	}

	switch c.GetNormalsMode() {
	case NormalsPCA, NormalsNone:
	case NormalsRemote:
		if c.GetNormalsURL() == "" {
			return fmt.Errorf("normals_mode %q requires normals_url", NormalsRemote)
		}
	default:
		return fmt.Errorf("unknown normals_mode %q", c.GetNormalsMode())
	}
	if c.NormalsTimeout != nil && *c.NormalsTimeout != "" {
		if _, err := time.ParseDuration(*c.NormalsTimeout); err != nil {
			return fmt.Errorf("invalid normals_timeout '%s': %w", *c.NormalsTimeout, err)
		}
	}
	return nil
}

// GetFilterStages returns the preprocessing order. The default voxelises
// first, then crops z and y; outlier removal is off unless listed.
func (c *TuningConfig) GetFilterStages() []string {
	if c.FilterStages == nil {
		return []string{l2filter.StageVoxel, l2filter.StagePassThroughZ, l2filter.StagePassThroughY}
	}
	out := make([]string, len(c.FilterStages))
	copy(out, c.FilterStages)
	return out
}

// GetVoxelLeafSize returns the voxel_leaf_size value or the default.
func (c *TuningConfig) GetVoxelLeafSize() float64 {
	if c.VoxelLeafSize == nil {
		return 0.01
	}
	return *c.VoxelLeafSize
}

// GetCropXMin returns the crop_x_min value or the default.
func (c *TuningConfig) GetCropXMin() float64 {
	if c.CropXMin == nil {
		return 0
	}
	return *c.CropXMin
}

// GetCropXMax returns the crop_x_max value or the default.
func (c *TuningConfig) GetCropXMax() float64 {
	if c.CropXMax == nil {
		return 1.5
	}
	return *c.CropXMax
}

// GetCropYMin returns the crop_y_min value or the default.
func (c *TuningConfig) GetCropYMin() float64 {
	if c.CropYMin == nil {
		return -0.45
	}
	return *c.CropYMin
}

// GetCropYMax returns the crop_y_max value or the default.
func (c *TuningConfig) GetCropYMax() float64 {
	if c.CropYMax == nil {
		return 0.45
	}
	return *c.CropYMax
}

// GetCropZMin returns the crop_z_min value or the default.
func (c *TuningConfig) GetCropZMin() float64 {
	if c.CropZMin == nil {
		return 0.6
	}
	return *c.CropZMin
}

// GetCropZMax returns the crop_z_max value or the default.
func (c *TuningConfig) GetCropZMax() float64 {
	if c.CropZMax == nil {
		return 1.1
	}
	return *c.CropZMax
}

// GetOutlierMeanK returns the outlier_mean_k value or the default.
func (c *TuningConfig) GetOutlierMeanK() int {
	if c.OutlierMeanK == nil {
		return 50
	}
	return *c.OutlierMeanK
}

// GetOutlierStdDevMul returns the outlier_stddev_mul value or the default.
func (c *TuningConfig) GetOutlierStdDevMul() float64 {
	if c.OutlierStdDevMul == nil {
		return 1.0
	}
	return *c.OutlierStdDevMul
}

// GetMinFramePoints returns the min_frame_points value or the default.
func (c *TuningConfig) GetMinFramePoints() int {
	if c.MinFramePoints == nil {
		return 3
	}
	return *c.MinFramePoints
}

// GetRansacDistance returns the ransac_distance value or the default.
func (c *TuningConfig) GetRansacDistance() float64 {
	if c.RansacDistance == nil {
		return 0.01
	}
	return *c.RansacDistance
}

// GetRansacIterations returns the ransac_iterations value or the default.
func (c *TuningConfig) GetRansacIterations() int {
	if c.RansacIterations == nil {
		return 1000
	}
	return *c.RansacIterations
}

// GetRansacSeed returns the ransac_seed value or the default.
func (c *TuningConfig) GetRansacSeed() int64 {
	if c.RansacSeed == nil {
		return 1
	}
	return *c.RansacSeed
}

// GetClusterTolerance returns the cluster_tolerance value or the default.
func (c *TuningConfig) GetClusterTolerance() float64 {
	if c.ClusterTolerance == nil {
		return 0.05
	}
	return *c.ClusterTolerance
}

// GetClusterMinSize returns the cluster_min_size value or the default.
func (c *TuningConfig) GetClusterMinSize() int {
	if c.ClusterMinSize == nil {
		return 10
	}
	return *c.ClusterMinSize
}

// GetClusterMaxSize returns the cluster_max_size value or the default.
// Zero means unbounded.
func (c *TuningConfig) GetClusterMaxSize() int {
	if c.ClusterMaxSize == nil {
		return 2500
	}
	return *c.ClusterMaxSize
}

// GetNormalsMode returns the normals_mode value or the default.
func (c *TuningConfig) GetNormalsMode() string {
	if c.NormalsMode == nil || *c.NormalsMode == "" {
		return NormalsPCA
	}
	return *c.NormalsMode
}

// GetNormalsK returns the normals_k value or the default.
func (c *TuningConfig) GetNormalsK() int {
	if c.NormalsK == nil {
		return 10
	}
	return *c.NormalsK
}

// GetNormalsURL returns the normals_url value or the default.
func (c *TuningConfig) GetNormalsURL() string {
	if c.NormalsURL == nil {
		return ""
	}
	return *c.NormalsURL
}

// GetNormalsTimeout parses and returns the NormalsTimeout as a time.Duration.
func (c *TuningConfig) GetNormalsTimeout() time.Duration {
	if c.NormalsTimeout == nil || *c.NormalsTimeout == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.NormalsTimeout)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetRequireModel returns the require_model value or the default.
func (c *TuningConfig) GetRequireModel() bool {
	if c.RequireModel == nil {
		return false
	}
	return *c.RequireModel
}

// GetLabelOffsetZ returns the label_offset_z value or the default.
func (c *TuningConfig) GetLabelOffsetZ() float64 {
	if c.LabelOffsetZ == nil {
		return 0.4
	}
	return *c.LabelOffsetZ
}

// GetInputTopic returns the input_topic value or the default.
func (c *TuningConfig) GetInputTopic() string {
	if c.InputTopic == nil || *c.InputTopic == "" {
		return "pr2/world/points"
	}
	return *c.InputTopic
}

// GetTopicPrefix returns the topic_prefix value or the default.
func (c *TuningConfig) GetTopicPrefix() string {
	if c.TopicPrefix == nil {
		return "pickplace/"
	}
	return *c.TopicPrefix
}

// FilterParams collects the preprocessing parameters.
func (c *TuningConfig) FilterParams() l2filter.Params {
	return l2filter.Params{
		LeafSize:  c.GetVoxelLeafSize(),
		CropX:     l2filter.Range{Min: c.GetCropXMin(), Max: c.GetCropXMax()},
		CropY:     l2filter.Range{Min: c.GetCropYMin(), Max: c.GetCropYMax()},
		CropZ:     l2filter.Range{Min: c.GetCropZMin(), Max: c.GetCropZMax()},
		MeanK:     c.GetOutlierMeanK(),
		StdDevMul: c.GetOutlierStdDevMul(),
	}
}
