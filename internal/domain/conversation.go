package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is one entry of a client-side conversation log.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
