package fraud

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"actms/models"
)

// ErrModelNotReady is returned when no model could be loaded or trained.
var ErrModelNotReady = errors.New("fraud model not ready")

const syntheticSamples = 100

// Store is the slice of db.Storage the detector reads bids from.
type Store interface {
	ListScoringRows(ctx context.Context) ([]models.ScoringRow, error)
}

// Recorder receives scoring and training events, e.g. for metrics.
type Recorder interface {
	ObserveScore(score float64, flagged bool)
	ObserveTraining(source string, samples int)
}

type Options struct {
	ModelDir        string
	Contamination   float64
	Trees           int
	MaxSamples      int
	MinTrainingBids int
	Seed            uint64
}

func (o *Options) defaults() {
	if o.Contamination <= 0 {
		o.Contamination = 0.1
	}
	if o.Trees <= 0 {
		o.Trees = 100
	}
	if o.MaxSamples <= 1 {
		o.MaxSamples = 256
	}
	if o.MinTrainingBids <= 0 {
		o.MinTrainingBids = 10
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
}

// Detector scores bids with an isolation forest. The fitted model is
// replaced as a whole under mu so scoring never sees a half-trained one.
type Detector struct {
	store    Store
	opts     Options
	log      *zap.Logger
	recorder Recorder

	trainMu sync.Mutex
	mu      sync.RWMutex
	model   *Model

	now func() time.Time
}

func NewDetector(store Store, opts Options, log *zap.Logger) *Detector {
	opts.defaults()
	return &Detector{
		store: store,
		opts:  opts,
		log:   log.Named("fraud"),
		now:   time.Now,
	}
}

// SetRecorder attaches an observer for scores and trainings.
func (d *Detector) SetRecorder(r Recorder) {
	d.recorder = r
}

func (d *Detector) modelPath() string {
	return filepath.Join(d.opts.ModelDir, ModelFile)
}

func (d *Detector) current() *Model {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model
}

func (d *Detector) swap(m *Model) {
	d.mu.Lock()
	d.model = m
	d.mu.Unlock()
}

// Initialize loads the persisted model, or fits one on synthetic data and
// saves it when none is usable.
func (d *Detector) Initialize(ctx context.Context) error {
	d.trainMu.Lock()
	defer d.trainMu.Unlock()
	if d.current() != nil {
		return nil
	}

	m, err := loadModel(d.modelPath())
	if err == nil {
		d.swap(m)
		d.log.Info("model loaded", zap.String("path", d.modelPath()), zap.Time("trained_at", m.TrainedAt))
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		d.log.Warn("discarding unusable model file", zap.String("path", d.modelPath()), zap.Error(err))
	}

	rng := d.rng()
	m, err = d.fit(syntheticRows(syntheticSamples, rng), "synthetic", rng)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}
	if err := m.save(d.modelPath()); err != nil {
		d.log.Warn("default model not saved", zap.Error(err))
	}
	d.swap(m)
	d.log.Info("default model fitted on synthetic data", zap.Int("samples", m.Samples))
	return nil
}

func (d *Detector) rng() *rand.Rand {
	return rand.New(rand.NewPCG(d.opts.Seed, d.opts.Seed^0x9e3779b97f4a7c15))
}

func (d *Detector) fit(rows []models.ScoringRow, source string, rng *rand.Rand) (*Model, error) {
	if len(rows) < 2 {
		return nil, errors.New("not enough training data")
	}
	X := make([][]float64, len(rows))
	for i, r := range rows {
		X[i] = Features(r)
	}
	scaler := fitScaler(X)
	scaled := scaler.TransformAll(X)
	forest, err := fitForest(scaled, d.opts.Trees, d.opts.MaxSamples, rng)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(scaled))
	for i, x := range scaled {
		scores[i] = forest.Score(x)
	}
	return &Model{
		Format:         modelFormat,
		FeatureNames:   append([]string(nil), FeatureNames...),
		Scaler:         scaler,
		Forest:         forest,
		Threshold:      quantile(scores, 1-d.opts.Contamination),
		Contamination:  d.opts.Contamination,
		Trees:          d.opts.Trees,
		MaxSamples:     forest.SampleSize,
		TrainedAt:      d.now().UTC(),
		TrainingSource: source,
		Samples:        len(rows),
	}, nil
}

// Analysis is the outcome of scoring one bid.
type Analysis struct {
	BidID            int                `json:"bid_id"`
	AnomalyScore     float64            `json:"anomaly_score"`
	IsSuspicious     bool               `json:"is_suspicious"`
	RawScore         float64            `json:"raw_score"`
	Threshold        float64            `json:"threshold"`
	FeaturesAnalyzed map[string]float64 `json:"features_analyzed"`
}

// Score rates a bid. AnomalyScore is in (0, 1], higher is riskier, and the
// bid is flagged when it exceeds the training threshold. RawScore is
// threshold minus score, so negative means outlier.
func (d *Detector) Score(ctx context.Context, row models.ScoringRow) (Analysis, error) {
	m := d.current()
	if m == nil {
		if err := d.Initialize(ctx); err != nil {
			return Analysis{BidID: row.BidID}, err
		}
		if m = d.current(); m == nil {
			return Analysis{BidID: row.BidID}, ErrModelNotReady
		}
	}

	x := Features(row)
	score := m.Score(x)
	a := Analysis{
		BidID:            row.BidID,
		AnomalyScore:     score,
		IsSuspicious:     score > m.Threshold,
		RawScore:         m.Threshold - score,
		Threshold:        m.Threshold,
		FeaturesAnalyzed: make(map[string]float64, len(x)),
	}
	for i, name := range FeatureNames {
		a.FeaturesAnalyzed[name] = x[i]
	}
	if d.recorder != nil {
		d.recorder.ObserveScore(a.AnomalyScore, a.IsSuspicious)
	}
	return a, nil
}

// TrainResult summarises a training run.
type TrainResult struct {
	Success                bool      `json:"success"`
	Source                 string    `json:"source"`
	Samples                int       `json:"n_samples"`
	OutliersDetected       int       `json:"n_outliers_detected"`
	OutlierPercentage      float64   `json:"outlier_percentage"`
	ContaminationThreshold float64   `json:"contamination_threshold"`
	ScoreThreshold         float64   `json:"score_threshold"`
	FeatureNames           []string  `json:"feature_names"`
	ModelSaved             bool      `json:"model_saved"`
	Timestamp              time.Time `json:"timestamp"`
}

// Train refits the model on stored bids, or on synthetic bids while fewer
// than MinTrainingBids exist, then persists and swaps it in.
func (d *Detector) Train(ctx context.Context) (TrainResult, error) {
	d.trainMu.Lock()
	defer d.trainMu.Unlock()

	rows, err := d.store.ListScoringRows(ctx)
	if err != nil {
		return TrainResult{Timestamp: d.now()}, fmt.Errorf("load training bids: %w", err)
	}

	rng := d.rng()
	source := "real_data"
	if len(rows) < d.opts.MinTrainingBids {
		d.log.Info("not enough bids for training, using synthetic data",
			zap.Int("bids", len(rows)), zap.Int("required", d.opts.MinTrainingBids))
		rows = syntheticRows(syntheticSamples, rng)
		source = "synthetic"
	}

	m, err := d.fit(rows, source, rng)
	if err != nil {
		return TrainResult{Timestamp: d.now()}, fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}

	outliers := 0
	for _, r := range rows {
		if m.Score(Features(r)) > m.Threshold {
			outliers++
		}
	}

	saved := true
	if err := m.save(d.modelPath()); err != nil {
		saved = false
		d.log.Error("model not saved", zap.String("path", d.modelPath()), zap.Error(err))
	}
	d.swap(m)
	if d.recorder != nil {
		d.recorder.ObserveTraining(source, len(rows))
	}

	res := TrainResult{
		Success:                true,
		Source:                 source,
		Samples:                len(rows),
		OutliersDetected:       outliers,
		OutlierPercentage:      math.Round(float64(outliers)/float64(len(rows))*10000) / 100,
		ContaminationThreshold: d.opts.Contamination,
		ScoreThreshold:         m.Threshold,
		FeatureNames:           m.FeatureNames,
		ModelSaved:             saved,
		Timestamp:              m.TrainedAt,
	}
	d.log.Info("model trained",
		zap.String("source", source),
		zap.Int("samples", res.Samples),
		zap.Int("outliers", res.OutliersDetected),
		zap.Float64("threshold", m.Threshold))
	return res, nil
}

// ModelMetrics describes the loaded model and its file.
type ModelMetrics struct {
	ModelLoaded            bool       `json:"model_loaded"`
	ContaminationThreshold float64    `json:"contamination_threshold"`
	FeatureCount           int        `json:"feature_count"`
	FeatureNames           []string   `json:"feature_names"`
	NEstimators            int        `json:"n_estimators,omitempty"`
	MaxSamples             int        `json:"max_samples,omitempty"`
	ScoreThreshold         float64    `json:"score_threshold,omitempty"`
	TrainingSource         string     `json:"training_source,omitempty"`
	TrainingSamples        int        `json:"training_samples,omitempty"`
	TrainedAt              *time.Time `json:"trained_at,omitempty"`
	ModelFileSize          int64      `json:"model_file_size,omitempty"`
	ModelLastModified      *time.Time `json:"model_last_modified,omitempty"`
}

func (d *Detector) Metrics() ModelMetrics {
	out := ModelMetrics{
		ContaminationThreshold: d.opts.Contamination,
		FeatureCount:           len(FeatureNames),
		FeatureNames:           FeatureNames,
	}
	if m := d.current(); m != nil {
		trained := m.TrainedAt
		out.ModelLoaded = true
		out.NEstimators = len(m.Forest.Trees)
		out.MaxSamples = m.MaxSamples
		out.ScoreThreshold = m.Threshold
		out.TrainingSource = m.TrainingSource
		out.TrainingSamples = m.Samples
		out.TrainedAt = &trained
	}
	if fi, err := os.Stat(d.modelPath()); err == nil {
		mod := fi.ModTime().UTC()
		out.ModelFileSize = fi.Size()
		out.ModelLastModified = &mod
	}
	return out
}
