package models

import (
	"encoding/json"
	"time"
)

// HoldoutMetrics summarizes the calibration window a model was scored on.
type HoldoutMetrics struct {
	N            int     `json:"n"`
	MeanActual   float64 `json:"mean_actual"`
	MeanResidual float64 `json:"mean_residual"`
	MAE          float64 `json:"mae"`
}

// ModelArtifact is the serialized form of a trained model: regressor
// parameters, the ordered feature list it expects, the calibration factor,
// the training cutoff and the schema fingerprint. Artifacts are immutable
// once written; the store replaces them atomically.
type ModelArtifact struct {
	Granularity       Granularity     `json:"granularity"`
	SchemaVersion     int             `json:"schema_version"`
	SchemaFingerprint string          `json:"schema_fingerprint"`
	Columns           []string        `json:"columns"`
	Cutoff            time.Time       `json:"cutoff"`
	Calibration       float64         `json:"calibration"`
	RegressorKind     string          `json:"regressor"`
	RegressorParams   json.RawMessage `json:"params"`
	Holdout           HoldoutMetrics  `json:"holdout"`
	TrainedAt         time.Time       `json:"trained_at"`
}
