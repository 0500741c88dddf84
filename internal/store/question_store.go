package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/quizattn/quizattn/internal/filestore"
	"github.com/quizattn/quizattn/internal/model"
	appErr "github.com/quizattn/quizattn/internal/pkg/errors"
)

// QuestionStore persists the selected question set. The JSON artifact is
// authoritative; a CSV twin with the upstream columns is written alongside.
type QuestionStore struct {
	store filestore.Store
}

func NewQuestionStore(store filestore.Store) *QuestionStore {
	return &QuestionStore{store: store}
}

func (s *QuestionStore) Save(ctx context.Context, records []model.QuestionRecord) error {
	if records == nil {
		records = []model.QuestionRecord{}
	}
	data, err := marshalIndent(records)
	if err != nil {
		return fmt.Errorf("encode selected questions: %w", err)
	}
	if err := s.store.Save(ctx, SelectedQuestionsJSONKey, data); err != nil {
		return fmt.Errorf("save %s: %w", SelectedQuestionsJSONKey, err)
	}
	csvData, err := encodeQuestionCSV(records)
	if err != nil {
		return fmt.Errorf("encode selected questions csv: %w", err)
	}
	if err := s.store.Save(ctx, SelectedQuestionsCSVKey, csvData); err != nil {
		return fmt.Errorf("save %s: %w", SelectedQuestionsCSVKey, err)
	}
	return nil
}

func (s *QuestionStore) Load(ctx context.Context) ([]model.QuestionRecord, error) {
	ok, err := s.store.Exists(ctx, SelectedQuestionsJSONKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", appErr.ErrNotFound, SelectedQuestionsJSONKey)
	}
	rc, err := s.store.Open(ctx, SelectedQuestionsJSONKey)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", SelectedQuestionsJSONKey, err)
	}
	defer rc.Close()
	var records []model.QuestionRecord
	if err := json.NewDecoder(rc).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", SelectedQuestionsJSONKey, err)
	}
	return records, nil
}

func encodeQuestionCSV(records []model.QuestionRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"data_id", "question", "answer", "tokens", "token_count"}); err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.DataID, 10),
			rec.Question,
			rec.Answer,
			model.JoinTokens(rec.Tokens),
			strconv.Itoa(rec.TokenCount),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// marshalIndent keeps multibyte text unescaped in the artifacts.
func marshalIndent(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
