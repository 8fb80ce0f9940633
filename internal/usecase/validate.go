package usecase

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"coin-chat/internal/domain"
)

const (
	MaxQuestionLen   = 1000
	MaxCoinNameLen   = 100
	MaxCoinSymbolLen = 20
)

// ValidateChatRequest parses and sanitizes a raw relay body. Checks run in a
// fixed order and the first failure is returned as an ErrorInvalidInput.
// Lengths are counted in characters on the untrimmed input.
func ValidateChatRequest(body []byte) (domain.ChatRequest, error) {
	if !json.Valid(body) {
		return domain.ChatRequest{}, invalidInput("invalid_json", "Invalid JSON")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return domain.ChatRequest{}, invalidInput("invalid_body", msgInvalidBody)
	}

	question, ok := stringField(fields, "question")
	if !ok || strings.TrimSpace(question) == "" {
		return domain.ChatRequest{}, invalidInput("empty_question", "Question is required")
	}
	if utf8.RuneCountInString(question) > MaxQuestionLen {
		return domain.ChatRequest{}, invalidInput("question_too_long", "Question too long (max 1000 characters)")
	}

	coinName, ok := stringField(fields, "coinName")
	if !ok || strings.TrimSpace(coinName) == "" || utf8.RuneCountInString(coinName) > MaxCoinNameLen {
		return domain.ChatRequest{}, invalidInput("invalid_coin_name", "Invalid coin name")
	}

	coinSymbol, ok := stringField(fields, "coinSymbol")
	if !ok || strings.TrimSpace(coinSymbol) == "" || utf8.RuneCountInString(coinSymbol) > MaxCoinSymbolLen {
		return domain.ChatRequest{}, invalidInput("invalid_coin_symbol", "Invalid coin symbol")
	}

	coinData, err := parseCoinData(fields["coinData"])
	if err != nil {
		return domain.ChatRequest{}, err
	}

	return domain.ChatRequest{
		Question:   truncateRunes(strings.TrimSpace(question), MaxQuestionLen),
		CoinName:   truncateRunes(strings.TrimSpace(coinName), MaxCoinNameLen),
		CoinSymbol: strings.ToUpper(truncateRunes(strings.TrimSpace(coinSymbol), MaxCoinSymbolLen)),
		CoinData:   coinData,
	}, nil
}

func parseCoinData(raw json.RawMessage) (domain.CoinData, error) {
	var fields map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil || fields == nil {
		return domain.CoinData{}, invalidInput("invalid_coin_data", "Invalid coin data")
	}

	var out domain.CoinData
	for _, name := range domain.CoinDataFields {
		v, ok := finiteNumber(fields[name])
		if !ok {
			return domain.CoinData{}, invalidInput("invalid_coin_data_field", "Invalid coin data field: "+name)
		}
		out.Set(name, v)
	}
	return out, nil
}

// stringField reports false unless key holds a JSON string.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw := bytes.TrimSpace(fields[key])
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// finiteNumber reports false unless raw is a JSON number representable as a
// finite float64.
func finiteNumber(raw json.RawMessage) (float64, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
