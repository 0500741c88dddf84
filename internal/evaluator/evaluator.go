package evaluator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/quizattn/quizattn/internal/config"
	"github.com/quizattn/quizattn/internal/llm"
	"github.com/quizattn/quizattn/internal/model"
	"github.com/quizattn/quizattn/internal/store"
)

type Options struct {
	RequestDelay       time.Duration
	Temperature        float32
	MaxTokens          int
	WeightSumTolerance float64
	TokenMatch         string
	Sleep              func(time.Duration)
}

type Evaluator struct {
	completer llm.ICompleter
	results   *store.ResultStore
	opts      Options
}

func New(completer llm.ICompleter, results *store.ResultStore, opts Options) *Evaluator {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.TokenMatch == "" {
		opts.TokenMatch = config.TokenMatchExact
	}
	return &Evaluator{completer: completer, results: results, opts: opts}
}

type Summary struct {
	Total   int
	Done    int
	Skipped int
	Failed  []int64
}

// Run evaluates every record not yet present in the result artifact and
// persists after each completed one. Duplicate list entries are evaluated
// once. Record failures do not stop the run; a persistence failure does.
func (e *Evaluator) Run(ctx context.Context, records []model.QuestionRecord) (*Summary, error) {
	logger := logutil.GetLogger(ctx)
	results, err := e.results.Load(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int64]bool, len(results))
	for _, res := range results {
		done[res.DataID] = true
	}

	summary := &Summary{Total: len(records)}
	items := make([]model.QuestionRecord, 0, len(records))
	seen := make(map[int64]bool, len(records))
	for _, rec := range records {
		if seen[rec.DataID] {
			summary.Skipped++
			logger.Warn("duplicate data_id in evaluation list, keeping first occurrence", zap.Int64("data_id", rec.DataID))
			continue
		}
		seen[rec.DataID] = true
		items = append(items, rec)
	}

	pending := 0
	for _, rec := range items {
		if !done[rec.DataID] {
			pending++
		}
	}

	processed := 0
	for _, rec := range items {
		if done[rec.DataID] {
			summary.Skipped++
			logger.Info("already evaluated, skipping", zap.Int64("data_id", rec.DataID))
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		processed++
		logger.Info("evaluating record",
			zap.Int64("data_id", rec.DataID),
			zap.Int("progress", processed),
			zap.Int("pending", pending))

		res, err := e.evaluateOne(ctx, rec)
		if err != nil {
			logger.Warn("evaluation failed", zap.Int64("data_id", rec.DataID), zap.Error(err))
			summary.Failed = append(summary.Failed, rec.DataID)
		} else {
			results = append(results, *res)
			if err := e.results.Save(ctx, results); err != nil {
				return summary, fmt.Errorf("persist results: %w", err)
			}
			summary.Done++
			logger.Info("record evaluated",
				zap.Int64("data_id", rec.DataID),
				zap.Float64("total_weight", res.TotalWeight))
		}
		// Rate-limit pause between calls, none after the last one.
		if processed < pending && e.opts.RequestDelay > 0 {
			e.opts.Sleep(e.opts.RequestDelay)
		}
	}
	return summary, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, rec model.QuestionRecord) (*model.AttributionResult, error) {
	prompt, err := BuildPrompt(rec)
	if err != nil {
		return nil, err
	}
	raw, err := e.completer.Complete(ctx, llm.Request{
		System:      SystemPrompt,
		Prompt:      prompt,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	weights, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateWeights(rec, weights, e.opts.TokenMatch); err != nil {
		return nil, err
	}

	result := &model.AttributionResult{
		QuestionRecord:   rec,
		AttentionWeights: weights,
		Model:            e.completer.ModelName(),
		RawResponse:      raw,
	}
	result.TotalWeight = result.WeightSum()
	if diff := math.Abs(result.TotalWeight - 1.0); diff > e.opts.WeightSumTolerance {
		logutil.GetLogger(ctx).Warn("weight sum outside tolerance",
			zap.Int64("data_id", rec.DataID),
			zap.Float64("total_weight", result.TotalWeight),
			zap.Float64("tolerance", e.opts.WeightSumTolerance))
	}
	return result, nil
}
