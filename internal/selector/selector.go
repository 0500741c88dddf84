package selector

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/quizattn/quizattn/internal/model"
)

type Selector struct {
	targetIDs []int64
}

func New(targetIDs []int64) *Selector {
	return &Selector{targetIDs: append([]int64(nil), targetIDs...)}
}

// Select returns matching records in target-id order, not table order,
// plus the ids with no row in the table.
func (s *Selector) Select(ctx context.Context, records []model.QuestionRecord) ([]model.QuestionRecord, []int64) {
	logger := logutil.GetLogger(ctx)
	byID := make(map[int64]model.QuestionRecord, len(records))
	for _, rec := range records {
		if _, ok := byID[rec.DataID]; ok {
			logger.Warn("duplicate data_id in table, keeping first occurrence", zap.Int64("data_id", rec.DataID))
			continue
		}
		byID[rec.DataID] = rec
	}

	selected := make([]model.QuestionRecord, 0, len(s.targetIDs))
	picked := make(map[int64]bool, len(s.targetIDs))
	var missing []int64
	for _, id := range s.targetIDs {
		if picked[id] {
			logger.Warn("duplicate target id, keeping first occurrence", zap.Int64("data_id", id))
			continue
		}
		picked[id] = true
		rec, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		selected = append(selected, rec)
	}
	if len(missing) > 0 {
		logger.Warn("target ids not found in table", zap.Int64s("missing", missing))
	}
	return selected, missing
}
