package usecase

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"coin-chat/internal/domain"
)

func btcCoinData() map[string]any {
	return map[string]any{
		"currentPrice":      65000,
		"priceChange24h":    2.1,
		"marketCap":         1.2e12,
		"volume24h":         3e10,
		"circulatingSupply": 19e6,
		"rank":              1,
		"ath":               69000,
		"high24h":           66000,
		"low24h":            64000,
	}
}

func requestBody(t *testing.T, mutate func(m map[string]any)) []byte {
	t.Helper()
	m := map[string]any{
		"question":   "What is BTC?",
		"coinName":   "Bitcoin",
		"coinSymbol": "btc",
		"coinData":   btcCoinData(),
	}
	if mutate != nil {
		mutate(m)
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return raw
}

func expectInvalid(t *testing.T, err error, reason, message string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, ErrorInvalidInput, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
	require.Equal(t, message, usecaseErr.Message)
}

func TestValidateChatRequest_HappyPath(t *testing.T) {
	req, err := ValidateChatRequest(requestBody(t, func(m map[string]any) {
		m["question"] = "  What is BTC?  "
		m["coinName"] = " Bitcoin "
		m["coinSymbol"] = " btc "
		m["extra"] = true
	}))
	require.NoError(t, err)
	require.Equal(t, domain.ChatRequest{
		Question:   "What is BTC?",
		CoinName:   "Bitcoin",
		CoinSymbol: "BTC",
		CoinData: domain.CoinData{
			CurrentPrice:      65000,
			PriceChange24h:    2.1,
			MarketCap:         1.2e12,
			Volume24h:         3e10,
			CirculatingSupply: 19e6,
			Rank:              1,
			ATH:               69000,
			High24h:           66000,
			Low24h:            64000,
		},
	}, req)
}

func TestValidateChatRequest_Body(t *testing.T) {
	_, err := ValidateChatRequest([]byte(`{"question":`))
	expectInvalid(t, err, "invalid_json", "Invalid JSON")

	_, err = ValidateChatRequest(nil)
	expectInvalid(t, err, "invalid_json", "Invalid JSON")

	for _, body := range []string{`null`, `[1,2]`, `"text"`, `42`} {
		_, err = ValidateChatRequest([]byte(body))
		expectInvalid(t, err, "invalid_body", "Invalid request body")
	}
}

func TestValidateChatRequest_Question(t *testing.T) {
	cases := []struct {
		name     string
		question any
		reason   string
		message  string
	}{
		{name: "missing", question: nil, reason: "empty_question", message: "Question is required"},
		{name: "blank", question: "   \t ", reason: "empty_question", message: "Question is required"},
		{name: "not a string", question: 42, reason: "empty_question", message: "Question is required"},
		{name: "too long", question: strings.Repeat("a", 1001), reason: "question_too_long", message: "Question too long (max 1000 characters)"},
		{name: "too long with padding", question: " " + strings.Repeat("a", 1000), reason: "question_too_long", message: "Question too long (max 1000 characters)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateChatRequest(requestBody(t, func(m map[string]any) {
				if tc.question == nil {
					delete(m, "question")
					return
				}
				m["question"] = tc.question
			}))
			expectInvalid(t, err, tc.reason, tc.message)
		})
	}
}

func TestValidateChatRequest_QuestionAtLimit(t *testing.T) {
	q := strings.Repeat("é", MaxQuestionLen)
	req, err := ValidateChatRequest(requestBody(t, func(m map[string]any) { m["question"] = q }))
	require.NoError(t, err, "length is counted in characters, not bytes")
	require.Equal(t, q, req.Question)
}

func TestValidateChatRequest_CoinNameAndSymbol(t *testing.T) {
	cases := []struct {
		name    string
		field   string
		value   any
		message string
	}{
		{name: "empty name", field: "coinName", value: " ", message: "Invalid coin name"},
		{name: "long name", field: "coinName", value: strings.Repeat("n", 101), message: "Invalid coin name"},
		{name: "numeric name", field: "coinName", value: 1, message: "Invalid coin name"},
		{name: "empty symbol", field: "coinSymbol", value: "", message: "Invalid coin symbol"},
		{name: "long symbol", field: "coinSymbol", value: strings.Repeat("S", 21), message: "Invalid coin symbol"},
		{name: "null symbol", field: "coinSymbol", value: nil, message: "Invalid coin symbol"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateChatRequest(requestBody(t, func(m map[string]any) { m[tc.field] = tc.value }))
			var usecaseErr *Error
			require.ErrorAs(t, err, &usecaseErr)
			require.Equal(t, tc.message, usecaseErr.Message)
		})
	}
}

func TestValidateChatRequest_FirstFailureWins(t *testing.T) {
	_, err := ValidateChatRequest(requestBody(t, func(m map[string]any) {
		m["question"] = ""
		m["coinName"] = ""
		delete(m, "coinData")
	}))
	expectInvalid(t, err, "empty_question", "Question is required")
}

func TestValidateChatRequest_CoinDataShape(t *testing.T) {
	for _, v := range []any{nil, "data", []int{1}, 3} {
		_, err := ValidateChatRequest(requestBody(t, func(m map[string]any) { m["coinData"] = v }))
		expectInvalid(t, err, "invalid_coin_data", "Invalid coin data")
	}
	_, err := ValidateChatRequest(requestBody(t, func(m map[string]any) { delete(m, "coinData") }))
	expectInvalid(t, err, "invalid_coin_data", "Invalid coin data")
}

func TestValidateChatRequest_EveryCoinDataFieldRequired(t *testing.T) {
	for _, field := range domain.CoinDataFields {
		t.Run("missing "+field, func(t *testing.T) {
			_, err := ValidateChatRequest(requestBody(t, func(m map[string]any) {
				delete(m["coinData"].(map[string]any), field)
			}))
			expectInvalid(t, err, "invalid_coin_data_field", "Invalid coin data field: "+field)
		})
		t.Run("string "+field, func(t *testing.T) {
			_, err := ValidateChatRequest(requestBody(t, func(m map[string]any) {
				m["coinData"].(map[string]any)[field] = "1"
			}))
			expectInvalid(t, err, "invalid_coin_data_field", "Invalid coin data field: "+field)
		})
		t.Run("null "+field, func(t *testing.T) {
			_, err := ValidateChatRequest(requestBody(t, func(m map[string]any) {
				m["coinData"].(map[string]any)[field] = nil
			}))
			expectInvalid(t, err, "invalid_coin_data_field", "Invalid coin data field: "+field)
		})
	}
}

func TestValidateChatRequest_NonFiniteNumber(t *testing.T) {
	body := `{"question":"q","coinName":"Bitcoin","coinSymbol":"BTC","coinData":{` +
		`"currentPrice":1,"priceChange24h":1,"marketCap":1e999,"volume24h":1,` +
		`"circulatingSupply":1,"rank":1,"ath":1,"high24h":1,"low24h":1}}`
	_, err := ValidateChatRequest([]byte(body))
	expectInvalid(t, err, "invalid_coin_data_field", "Invalid coin data field: marketCap")
}
