package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"coin-chat/internal/domain"
)

func buildPromptMessages(req domain.ChatRequest) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: buildSystemPrompt(req)},
		{Role: "user", Content: req.Question},
	}
}

func buildSystemPrompt(req domain.ChatRequest) string {
	return strings.Join([]string{
		fmt.Sprintf("You are a cryptocurrency expert assistant. You are currently providing information about %s (%s).", req.CoinName, req.CoinSymbol),
		"",
		"Current coin data:",
		coinDataLines(req.CoinData),
		"",
		behaviorRules(),
	}, "\n")
}

func coinDataLines(d domain.CoinData) string {
	return strings.Join([]string{
		"- Current Price: $" + plainNumber(d.CurrentPrice),
		"- 24h Change: " + plainNumber(d.PriceChange24h) + "%",
		"- Market Cap: $" + plainNumber(d.MarketCap),
		"- 24h Volume: $" + plainNumber(d.Volume24h),
		"- Circulating Supply: " + plainNumber(d.CirculatingSupply),
		"- Market Cap Rank: #" + plainNumber(d.Rank),
		"- All-Time High: $" + plainNumber(d.ATH),
		"- 24h High: $" + plainNumber(d.High24h),
		"- 24h Low: $" + plainNumber(d.Low24h),
	}, "\n")
}

func behaviorRules() string {
	return "Answer questions about this cryptocurrency. Be concise, helpful, and accurate. " +
		"If asked about price predictions, clarify that you cannot predict future prices but can discuss trends and market factors. " +
		"Focus on providing factual information and educational content about the coin."
}

// plainNumber renders v without exponent notation.
func plainNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
