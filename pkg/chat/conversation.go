package chat

import (
	"strings"
	"unicode/utf8"
)

// DefaultTitle is the title of a conversation before its first prompt.
const DefaultTitle = "New Chat"

const maxTitleRunes = 60

type Conversation struct {
	ID      string
	Title   string
	History []ChatMessage
}

func NewConversation(id string) Conversation {
	return Conversation{
		ID:      id,
		Title:   DefaultTitle,
		History: make([]ChatMessage, 0),
	}
}

func AddMessage(conv Conversation, msg ChatMessage) Conversation {
	history := make([]ChatMessage, len(conv.History)+1)
	copy(history, conv.History)
	history[len(conv.History)] = msg

	return Conversation{
		ID:      conv.ID,
		Title:   conv.Title,
		History: history,
	}
}

func GetMessages(conv Conversation) []ChatMessage {
	result := make([]ChatMessage, len(conv.History))
	copy(result, conv.History)
	return result
}

func GetLastResponse(conv Conversation) (ChatMessage, bool) {
	for i := len(conv.History) - 1; i >= 0; i-- {
		if conv.History[i].IsResponse() {
			return conv.History[i], true
		}
	}
	return ChatMessage{}, false
}

// DeriveTitle builds a title from the first user prompt. It returns
// DefaultTitle when there is none.
func DeriveTitle(conv Conversation) string {
	for _, m := range conv.History {
		if !m.IsUserPrompt() {
			continue
		}
		title := strings.Join(strings.Fields(m.Text()), " ")
		if title == "" {
			continue
		}
		if utf8.RuneCountInString(title) > maxTitleRunes {
			runes := []rune(title)
			title = strings.TrimSpace(string(runes[:maxTitleRunes-1])) + "…"
		}
		return title
	}
	return DefaultTitle
}

// NeedsTitle reports whether the conversation still carries the default title.
func NeedsTitle(conv Conversation) bool {
	return conv.Title == "" || conv.Title == DefaultTitle
}
