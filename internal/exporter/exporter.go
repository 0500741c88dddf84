package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/quizattn/quizattn/internal/filestore"
	"github.com/quizattn/quizattn/internal/model"
	appErr "github.com/quizattn/quizattn/internal/pkg/errors"
	"github.com/quizattn/quizattn/internal/store"
)

var Header = []string{"data_id", "question", "answer", "tokens", "weights", "token_count"}

type Exporter struct {
	store filestore.Store
}

func New(store filestore.Store) *Exporter {
	return &Exporter{store: store}
}

// Tokens and weights both come from the weighted pairs so the two columns
// always describe the same sequence.
func FlattenRow(res model.AttributionResult) []string {
	tokens := make([]string, len(res.AttentionWeights))
	weights := make([]string, len(res.AttentionWeights))
	for i, w := range res.AttentionWeights {
		tokens[i] = w.Token
		weights[i] = fmt.Sprintf("%.6f", w.Weight)
	}
	return []string{
		strconv.FormatInt(res.DataID, 10),
		res.Question,
		res.Answer,
		model.JoinTokens(tokens),
		model.JoinTokens(weights),
		strconv.Itoa(res.TokenCount),
	}
}

// Export loads the named result artifact and writes <base>.csv and
// <base>_no_header.csv next to it. Misaligned results are excluded with a
// warning.
func (e *Exporter) Export(ctx context.Context, resultKey string) (string, string, error) {
	logger := logutil.GetLogger(ctx)
	rs := store.NewResultStore(e.store, resultKey)
	results, err := rs.Load(ctx)
	if err != nil {
		return "", "", err
	}
	if results == nil {
		return "", "", fmt.Errorf("%w: %s", appErr.ErrNotFound, rs.Key())
	}

	rows := make([][]string, 0, len(results))
	excluded := 0
	for _, res := range results {
		if !res.Aligned() {
			logger.Warn("excluding misaligned result",
				zap.Int64("data_id", res.DataID),
				zap.Int("weights", len(res.AttentionWeights)),
				zap.Int("token_count", res.TokenCount))
			excluded++
			continue
		}
		rows = append(rows, FlattenRow(res))
	}

	base := strings.TrimSuffix(rs.Key(), ".json")
	withHeaderKey := base + ".csv"
	noHeaderKey := base + "_no_header.csv"

	data, err := encodeCSV(rows, true)
	if err != nil {
		return "", "", fmt.Errorf("encode %s: %w", withHeaderKey, err)
	}
	if err := e.store.Save(ctx, withHeaderKey, data); err != nil {
		return "", "", fmt.Errorf("save %s: %w", withHeaderKey, err)
	}
	data, err = encodeCSV(rows, false)
	if err != nil {
		return "", "", fmt.Errorf("encode %s: %w", noHeaderKey, err)
	}
	if err := e.store.Save(ctx, noHeaderKey, data); err != nil {
		return "", "", fmt.Errorf("save %s: %w", noHeaderKey, err)
	}

	logger.Info("export complete",
		zap.Int("rows", len(rows)),
		zap.Int("excluded", excluded),
		zap.String("with_header", withHeaderKey),
		zap.String("no_header", noHeaderKey))
	return withHeaderKey, noHeaderKey, nil
}

func encodeCSV(rows [][]string, withHeader bool) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if withHeader {
		if err := w.Write(Header); err != nil {
			return nil, err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
