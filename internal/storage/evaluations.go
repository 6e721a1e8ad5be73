package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// EvaluationRecord summarises one evaluation run over a labeled table.
type EvaluationRecord struct {
	Dataset      string         `json:"dataset"`
	Timestamp    time.Time      `json:"timestamp"`
	Rows         int            `json:"rows"`
	Scored       int            `json:"scored"`
	Accuracy     float64        `json:"accuracy"`
	ApprovalRate float64        `json:"approval_rate"`
	Failures     map[string]int `json:"failures,omitempty"`
}

func evaluationKey(dataset string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%020d", dataset, ts.UnixNano()))
}

// StoreEvaluation appends an evaluation record.
func (s *Store) StoreEvaluation(record EvaluationRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(evaluationsBucket))
		if err != nil {
			return fmt.Errorf("create evaluations bucket: %w", err)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal evaluation record: %w", err)
		}

		return b.Put(evaluationKey(record.Dataset, record.Timestamp), data)
	})
}

// GetEvaluations returns the runs for dataset between start and end
// inclusive, oldest first.
func (s *Store) GetEvaluations(dataset string, start, end time.Time) ([]EvaluationRecord, error) {
	var records []EvaluationRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(evaluationsBucket))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		prefix := []byte(dataset + "_")
		endKey := evaluationKey(dataset, end)

		for k, v := c.Seek(evaluationKey(dataset, start)); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}

			var record EvaluationRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue // Skip malformed records
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}
