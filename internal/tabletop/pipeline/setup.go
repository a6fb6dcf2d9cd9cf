package pipeline

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/banshee-data/pickplace/internal/config"
	"github.com/banshee-data/pickplace/internal/fsutil"
	"github.com/banshee-data/pickplace/internal/httputil"
	"github.com/banshee-data/pickplace/internal/tabletop/l5recognition"
)

// NormalsFromTuning returns the normal estimator selected by normals_mode.
// Mode "none" returns nil, which degrades the shape descriptor.
func NormalsFromTuning(t *config.TuningConfig, client httputil.HTTPClient) (l5recognition.NormalEstimator, error) {
	switch mode := t.GetNormalsMode(); mode {
	case config.NormalsPCA:
		return l5recognition.PCANormals{K: t.GetNormalsK()}, nil
	case config.NormalsRemote:
		if t.GetNormalsURL() == "" {
			return nil, errors.New("normals_mode remote needs normals_url")
		}
		return l5recognition.RemoteNormals{
			URL:     t.GetNormalsURL(),
			Client:  client,
			Timeout: t.GetNormalsTimeout(),
		}, nil
	case config.NormalsNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown normals_mode %q", mode)
	}
}

// LoadClassifier loads the model at path. A missing model (empty path or
// absent file) yields a nil classifier unless require_model is set, in
// which case it is a startup error.
func LoadClassifier(fsys fsutil.FileSystem, path string, t *config.TuningConfig, client httputil.HTTPClient) (*l5recognition.Classifier, error) {
	if path == "" {
		if t.GetRequireModel() {
			return nil, fmt.Errorf("%w: no model path given", l5recognition.ErrClassificationUnavailable)
		}
		opsf("no model configured: classification disabled")
		return nil, nil
	}

	model, err := l5recognition.LoadModel(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !t.GetRequireModel() {
			opsf("model %s not found: classification disabled", path)
			return nil, nil
		}
		return nil, err
	}

	normals, err := NormalsFromTuning(t, client)
	if err != nil {
		return nil, err
	}
	if model.Features.NormalBins > 0 && normals == nil {
		opsf("model %s wants %d normal bins but normals_mode is none: shape descriptor zero-filled",
			path, model.Features.NormalBins)
	}
	diagf("model %s: version=%q classes=%v", path, model.Version, model.Classes)
	return &l5recognition.Classifier{Model: model, Normals: normals}, nil
}

// Setup names the startup inputs of a Processor.
type Setup struct {
	Tuning    *config.TuningConfig
	ModelPath string
	ScenePath string
	FS        fsutil.FileSystem
	Client    httputil.HTTPClient
}

// NewProcessorFromSetup loads the model and scene and builds a Processor.
// Every error it returns is fatal to the caller.
func NewProcessorFromSetup(s Setup) (*Processor, error) {
	if s.Tuning == nil {
		s.Tuning = config.EmptyTuningConfig()
	}
	if s.FS == nil {
		s.FS = fsutil.OSFileSystem{}
	}
	classifier, err := LoadClassifier(s.FS, s.ModelPath, s.Tuning, s.Client)
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	scene, err := config.LoadSceneConfig(s.ScenePath)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	return NewProcessor(ConfigFromTuning(s.Tuning), classifier, scene)
}

