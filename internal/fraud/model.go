package fraud

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// ModelFile is the file name of the persisted model inside the model dir.
const ModelFile = "isolation_forest.json"

const modelFormat = 1

// Model is a fitted scaler and forest plus the cut-off that flags a bid.
type Model struct {
	Format         int       `json:"format"`
	FeatureNames   []string  `json:"feature_names"`
	Scaler         Scaler    `json:"scaler"`
	Forest         *Forest   `json:"forest"`
	Threshold      float64   `json:"threshold"`
	Contamination  float64   `json:"contamination"`
	Trees          int       `json:"trees"`
	MaxSamples     int       `json:"max_samples"`
	TrainedAt      time.Time `json:"trained_at"`
	TrainingSource string    `json:"training_source"`
	Samples        int       `json:"samples"`
}

// Score returns the anomaly score of a raw feature vector.
func (m *Model) Score(x []float64) float64 {
	return m.Forest.Score(m.Scaler.Transform(x))
}

func loadModel(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if m.Format != modelFormat || m.Forest == nil || len(m.Forest.Trees) == 0 {
		return nil, errors.New("unsupported or empty model file")
	}
	if !slices.Equal(m.FeatureNames, FeatureNames) {
		return nil, fmt.Errorf("model trained on features %v, want %v", m.FeatureNames, FeatureNames)
	}
	return &m, nil
}

// save writes the model through a temp file so readers never see a partial file.
func (m *Model) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
