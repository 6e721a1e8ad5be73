package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"loan-scorer/internal/common"
	"loan-scorer/internal/features"
)

// Artifact keys in the blob store.
const (
	KeyTransformerState = "transformer_state"
	KeyEncoders         = "encoders"
	KeyFeatureOrder     = "feature_order"
	KeyTargetEncoder    = "target_encoder"
	KeyClassifier       = "classifier"
	KeyMetadata         = "metadata"
)

// BlobStore persists opaque artifact blobs by key.
type BlobStore interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
}

// Metadata describes how the artifacts were produced.
type Metadata struct {
	TrainedAt        time.Time `json:"trained_at"`
	TrainingRows     int       `json:"training_rows"`
	DroppedRows      int       `json:"dropped_rows"`
	TrainingAccuracy float64   `json:"training_accuracy"`
	ClassifierKind   string    `json:"classifier_kind"`
}

// Artifacts is everything the engine needs to score an application. It is
// built once, by Train or LoadArtifacts, and never modified afterwards.
type Artifacts struct {
	State         features.State
	Encoders      *features.EncoderTable
	FeatureOrder  []string
	Classifier    Classifier
	TargetEncoder *features.Encoder
	Metadata      Metadata
}

// Validate checks that the bundle is complete and self consistent.
func (a *Artifacts) Validate() error {
	if a == nil {
		return errors.New("artifacts are nil")
	}
	if a.Encoders == nil {
		return errors.New("encoder table is missing")
	}
	if a.Classifier == nil {
		return errors.New("classifier is missing")
	}
	if len(a.FeatureOrder) == 0 {
		return errors.New("feature order is empty")
	}
	if a.TargetEncoder != nil && a.TargetEncoder.Column() != common.FieldLoanStatus {
		return fmt.Errorf("target encoder is fitted on %q, not %s", a.TargetEncoder.Column(), common.FieldLoanStatus)
	}

	seen := make(map[string]bool, len(a.FeatureOrder))
	for _, c := range a.FeatureOrder {
		if seen[c] {
			return fmt.Errorf("feature %q appears twice in feature order", c)
		}
		seen[c] = true
	}
	return nil
}

// SaveArtifacts writes every artifact to store.
func SaveArtifacts(store BlobStore, a *Artifacts) error {
	if err := a.Validate(); err != nil {
		return err
	}

	classifier, ok := a.Classifier.(json.Marshaler)
	if !ok {
		return fmt.Errorf("classifier %T cannot be persisted", a.Classifier)
	}

	blobs := []struct {
		key   string
		value interface{}
	}{
		{KeyTransformerState, a.State},
		{KeyEncoders, a.Encoders},
		{KeyFeatureOrder, a.FeatureOrder},
		{KeyTargetEncoder, a.TargetEncoder},
		{KeyClassifier, classifier},
		{KeyMetadata, a.Metadata},
	}

	for _, b := range blobs {
		data, err := json.Marshal(b.value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", b.key, err)
		}
		if err := store.Put(b.key, data); err != nil {
			return fmt.Errorf("failed to store %s: %w", b.key, err)
		}
	}

	log.Info().
		Int("features", len(a.FeatureOrder)).
		Str("classifier", a.Metadata.ClassifierKind).
		Msg("Artifacts saved")

	return nil
}

// LoadArtifacts reads the artifact set from store. When classifier is not nil
// it replaces the persisted classifier, which is then not read.
func LoadArtifacts(store BlobStore, classifier Classifier) (*Artifacts, error) {
	a := &Artifacts{
		Encoders:      &features.EncoderTable{},
		TargetEncoder: &features.Encoder{},
	}

	blobs := []struct {
		key    string
		target interface{}
	}{
		{KeyTransformerState, &a.State},
		{KeyEncoders, a.Encoders},
		{KeyFeatureOrder, &a.FeatureOrder},
		{KeyTargetEncoder, a.TargetEncoder},
		{KeyMetadata, &a.Metadata},
	}

	for _, b := range blobs {
		data, err := store.Get(b.key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", b.key, err)
		}
		if err := json.Unmarshal(data, b.target); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", b.key, err)
		}
	}

	if classifier != nil {
		a.Classifier = classifier
	} else {
		data, err := store.Get(KeyClassifier)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", KeyClassifier, err)
		}
		if a.Classifier, err = DecodeClassifier(data); err != nil {
			return nil, err
		}
	}

	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid artifacts: %w", err)
	}

	log.Info().
		Int("features", len(a.FeatureOrder)).
		Strs("encoded_columns", a.Encoders.Columns()).
		Time("trained_at", a.Metadata.TrainedAt).
		Msg("Artifacts loaded")

	return a, nil
}
