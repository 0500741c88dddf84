package selector

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/quizattn/quizattn/internal/model"
)

var requiredColumns = []string{"data_id", "question", "answer", "tokens", "token_count"}

// LoadTable reads the tokenized question table. Extra columns are ignored,
// rows with an unparseable id or no tokens are skipped with a warning.
func LoadTable(ctx context.Context, path string) ([]model.QuestionRecord, error) {
	logger := logutil.GetLogger(ctx)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty input table: %s", path)
	}

	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	cols := make(map[string]int, len(requiredColumns))
	var missing []string
	for _, name := range requiredColumns {
		idx := findColumn(header, name)
		if idx < 0 {
			missing = append(missing, name)
			continue
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	records := make([]model.QuestionRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		id, err := strconv.ParseInt(cleanCell(cell(row, cols["data_id"])), 10, 64)
		if err != nil {
			logger.Warn("skip row with bad data_id", zap.Int("line", line), zap.Error(err))
			continue
		}
		tokens := model.SplitTokens(cell(row, cols["tokens"]))
		if len(tokens) == 0 {
			logger.Warn("skip row without tokens", zap.Int("line", line), zap.Int64("data_id", id))
			continue
		}
		count := len(tokens)
		if raw := cleanCell(cell(row, cols["token_count"])); raw != "" {
			declared, err := strconv.Atoi(raw)
			if err != nil || declared != count {
				logger.Warn("skip row with inconsistent token_count",
					zap.Int("line", line), zap.Int64("data_id", id),
					zap.String("declared", raw), zap.Int("actual", count))
				continue
			}
		}
		records = append(records, model.QuestionRecord{
			DataID:     id,
			Question:   cleanCell(cell(row, cols["question"])),
			Answer:     cleanCell(cell(row, cols["answer"])),
			Tokens:     tokens,
			TokenCount: count,
		})
	}
	return records, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

func findColumn(header []string, name string) int {
	for i, col := range header {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}
