package evaluator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quizattn/quizattn/internal/config"
	"github.com/quizattn/quizattn/internal/filestore"
	"github.com/quizattn/quizattn/internal/llm"
	"github.com/quizattn/quizattn/internal/model"
	"github.com/quizattn/quizattn/internal/store"
)

type fakeCompleter struct {
	responses []string
	errOn     map[int]error
	calls     int
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	if err := f.errOn[f.calls]; err != nil {
		return "", err
	}
	return f.responses[f.calls-1], nil
}

func (f *fakeCompleter) ModelName() string {
	return "fake-model"
}

func newResultStore(t *testing.T) *store.ResultStore {
	t.Helper()
	fs, err := filestore.New(config.FileStoreConfig{Type: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	return store.NewResultStore(fs, "")
}

func question(id int64, tokens ...string) model.QuestionRecord {
	return model.QuestionRecord{
		DataID:     id,
		Question:   fmt.Sprintf("question %d", id),
		Answer:     fmt.Sprintf("answer %d", id),
		Tokens:     tokens,
		TokenCount: len(tokens),
	}
}

func weightsResponse(tokens []string, weights []float64) string {
	items := make([]string, len(tokens))
	for i := range tokens {
		items[i] = fmt.Sprintf(`{"token": %q, "weight": %v}`, tokens[i], weights[i])
	}
	return fmt.Sprintf(`{"token_weights": [%s], "total_weight": 1.00}`, strings.Join(items, ", "))
}

func TestRunEvaluatesAll(t *testing.T) {
	recA := question(2201, "日本一", "高い", "山")
	recB := question(141, "水", "化学式")
	fake := &fakeCompleter{responses: []string{
		weightsResponse(recA.Tokens, []float64{0.5, 0.25, 0.25}),
		weightsResponse(recB.Tokens, []float64{0.75, 0.25}),
	}}
	rs := newResultStore(t)
	eval := New(fake, rs, Options{})

	summary, err := eval.Run(context.Background(), []model.QuestionRecord{recA, recB})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 2, summary.Done)
	require.Zero(t, summary.Skipped)
	require.Empty(t, summary.Failed)
	require.Equal(t, 2, fake.calls)

	results, err := rs.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int64(2201), results[0].DataID)
	require.Equal(t, "fake-model", results[0].Model)
	require.Equal(t, 1.0, results[0].TotalWeight)
	require.Equal(t, []model.WeightedToken{
		{Token: "日本一", Weight: 0.5},
		{Token: "高い", Weight: 0.25},
		{Token: "山", Weight: 0.25},
	}, results[0].AttentionWeights)
	require.NotEmpty(t, results[0].RawResponse)
	require.Equal(t, int64(141), results[1].DataID)
}

func TestRunSkipsAlreadyEvaluated(t *testing.T) {
	recA := question(2201, "日本一", "高い", "山")
	recB := question(141, "水", "化学式")
	rs := newResultStore(t)

	seed := model.AttributionResult{
		QuestionRecord: recA,
		AttentionWeights: []model.WeightedToken{
			{Token: "日本一", Weight: 0.5},
			{Token: "高い", Weight: 0.25},
			{Token: "山", Weight: 0.25},
		},
		TotalWeight: 1.0,
		Model:       "fake-model",
	}
	require.NoError(t, rs.Save(context.Background(), []model.AttributionResult{seed}))

	fake := &fakeCompleter{responses: []string{
		weightsResponse(recB.Tokens, []float64{0.75, 0.25}),
	}}
	eval := New(fake, rs, Options{})

	summary, err := eval.Run(context.Background(), []model.QuestionRecord{recA, recB})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, 1, summary.Done)
	require.Equal(t, 1, fake.calls)

	results, err := rs.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int64(2201), results[0].DataID)
	require.Equal(t, int64(141), results[1].DataID)
}

func TestRunEvaluatesDuplicateRecordOnce(t *testing.T) {
	rec := question(9, "a", "b")
	fake := &fakeCompleter{responses: []string{
		weightsResponse(rec.Tokens, []float64{0.5, 0.5}),
	}}
	rs := newResultStore(t)
	var sleeps int
	eval := New(fake, rs, Options{
		RequestDelay: time.Second,
		Sleep:        func(time.Duration) { sleeps++ },
	})

	summary, err := eval.Run(context.Background(), []model.QuestionRecord{rec, rec})
	require.NoError(t, err)
	require.Equal(t, 1, fake.calls)
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.Done)
	require.Equal(t, 1, summary.Skipped)
	require.Empty(t, summary.Failed)
	require.Zero(t, sleeps)

	results, err := rs.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int64(9), results[0].DataID)
}

func TestRunContinuesAfterRecordFailure(t *testing.T) {
	recA := question(1, "a")
	recB := question(2, "b")
	recC := question(3, "c")
	fake := &fakeCompleter{
		responses: []string{
			weightsResponse(recA.Tokens, []float64{1.0}),
			"",
			weightsResponse(recC.Tokens, []float64{1.0}),
		},
		errOn: map[int]error{2: fmt.Errorf("rate limited")},
	}
	rs := newResultStore(t)
	eval := New(fake, rs, Options{})

	summary, err := eval.Run(context.Background(), []model.QuestionRecord{recA, recB, recC})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Done)
	require.Equal(t, []int64{2}, summary.Failed)

	results, err := rs.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int64(1), results[0].DataID)
	require.Equal(t, int64(3), results[1].DataID)
}

func TestRunRejectsMismatchedTokens(t *testing.T) {
	rec := question(5, "a", "b")
	fake := &fakeCompleter{responses: []string{
		weightsResponse([]string{"x", "y"}, []float64{0.5, 0.5}),
	}}
	rs := newResultStore(t)
	eval := New(fake, rs, Options{TokenMatch: config.TokenMatchExact})

	summary, err := eval.Run(context.Background(), []model.QuestionRecord{rec})
	require.NoError(t, err)
	require.Equal(t, []int64{5}, summary.Failed)

	results, err := rs.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestRunCountModeAcceptsRenamedTokens(t *testing.T) {
	rec := question(5, "a", "b")
	fake := &fakeCompleter{responses: []string{
		weightsResponse([]string{"x", "y"}, []float64{0.5, 0.5}),
	}}
	rs := newResultStore(t)
	eval := New(fake, rs, Options{TokenMatch: config.TokenMatchCount})

	summary, err := eval.Run(context.Background(), []model.QuestionRecord{rec})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Done)
	require.Empty(t, summary.Failed)
}

func TestRunKeepsRecordOutsideTolerance(t *testing.T) {
	// A drifting sum is reported but never rejects the record.
	rec := question(7, "a", "b")
	fake := &fakeCompleter{responses: []string{
		weightsResponse(rec.Tokens, []float64{0.5, 0.47}),
	}}
	rs := newResultStore(t)
	eval := New(fake, rs, Options{WeightSumTolerance: 0.01})

	summary, err := eval.Run(context.Background(), []model.QuestionRecord{rec})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Done)
	require.Empty(t, summary.Failed)

	results, err := rs.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 0.97, results[0].TotalWeight, 1e-9)
}

func TestRunDelayBetweenCalls(t *testing.T) {
	records := []model.QuestionRecord{question(1, "a"), question(2, "b"), question(3, "c")}
	fake := &fakeCompleter{responses: []string{
		weightsResponse([]string{"a"}, []float64{1.0}),
		weightsResponse([]string{"b"}, []float64{1.0}),
		weightsResponse([]string{"c"}, []float64{1.0}),
	}}
	rs := newResultStore(t)
	var sleeps []time.Duration
	eval := New(fake, rs, Options{
		RequestDelay: 2 * time.Second,
		Sleep:        func(d time.Duration) { sleeps = append(sleeps, d) },
	})

	_, err := eval.Run(context.Background(), records)
	require.NoError(t, err)
	// No pause after the final call.
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeps)
}

func TestRunNoDelayForSkippedRecords(t *testing.T) {
	recA := question(1, "a")
	recB := question(2, "b")
	rs := newResultStore(t)
	seed := model.AttributionResult{
		QuestionRecord:   recA,
		AttentionWeights: []model.WeightedToken{{Token: "a", Weight: 1.0}},
		TotalWeight:      1.0,
	}
	require.NoError(t, rs.Save(context.Background(), []model.AttributionResult{seed}))

	fake := &fakeCompleter{responses: []string{
		weightsResponse([]string{"b"}, []float64{1.0}),
	}}
	var sleeps int
	eval := New(fake, rs, Options{
		RequestDelay: time.Second,
		Sleep:        func(time.Duration) { sleeps++ },
	})

	_, err := eval.Run(context.Background(), []model.QuestionRecord{recA, recB})
	require.NoError(t, err)
	require.Zero(t, sleeps)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeCompleter{}
	eval := New(fake, newResultStore(t), Options{})

	_, err := eval.Run(ctx, []model.QuestionRecord{question(1, "a")})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, fake.calls)
}
