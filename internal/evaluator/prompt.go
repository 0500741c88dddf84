package evaluator

import (
	"encoding/json"
	"fmt"

	"github.com/quizattn/quizattn/internal/model"
)

const SystemPrompt = "あなたはクイズ問題の専門家です。与えられたトークンの重要度を正確に評価してください。"

// The token list is embedded as a JSON array so the model sees exact token
// boundaries.
func BuildPrompt(rec model.QuestionRecord) (string, error) {
	tokenList, err := json.Marshal(rec.Tokens)
	if err != nil {
		return "", fmt.Errorf("encode token list: %w", err)
	}
	prompt := fmt.Sprintf(`【タスク】
クイズ問題のトークンごとの重要度評価

【問題文】
%s

【正答】
%s

【トークン一覧】
%s

【指示】
上記のクイズ問題について、各トークンが正答「%s」を導き出すのにどの程度重要か評価してください。

【評価基準】
- 正答を導くうえで全く手がかりにならないもの: 0に近い値
- 正答を導くうえで非常に有用な手がかりとなるもの: 1に近い値
- 各トークンの重要度の合計は必ず1.0になるように調整してください
- 小数第2位まで出力してください

【出力形式】
以下のJSON形式で出力してください：
{
  "token_weights": [
    {"token": "トークン1", "weight": 0.05},
    {"token": "トークン2", "weight": 0.12},
    ...
  ],
  "total_weight": 1.00
}

重要：JSONのみを出力し、説明文は含めないでください。`, rec.Question, rec.Answer, tokenList, rec.Answer)
	return prompt, nil
}
