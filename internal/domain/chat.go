package domain

// ChatMessage is the provider-agnostic chat message shape sent to the
// upstream chat-completions API.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a validated, size-bounded relay request.
type ChatRequest struct {
	Question   string   `json:"question"`
	CoinName   string   `json:"coinName"`
	CoinSymbol string   `json:"coinSymbol"`
	CoinData   CoinData `json:"coinData"`
}
