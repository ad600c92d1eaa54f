package bot

import (
	"strings"

	"github.com/justduck/relaybot/internal/telegram"
)

// IntentKind is the closed set of routes an inbound message can take.
type IntentKind string

const (
	IntentCommand  IntentKind = "command"
	IntentLocation IntentKind = "location"
	IntentCancel   IntentKind = "cancel"
	IntentPhoto    IntentKind = "photo"
	IntentVoice    IntentKind = "voice"
	IntentGreeting IntentKind = "greeting"
	IntentOrigin   IntentKind = "origin"
	IntentChat     IntentKind = "chat"
)

// Intent is a classified inbound message. Search and image keyword
// hits do not change the kind; they enrich the chat flow, so a
// message asking for both news and pictures gets both.
type Intent struct {
	Kind    IntentKind
	Command string
	Args    string
	Text    string
	// NeedsSearch folds fresh web results into the model prompt.
	NeedsSearch bool
	// NeedsImages sends matching photos after the reply.
	NeedsImages bool
}

// Classify routes a message by inspecting the payload and text. The
// checks run in priority order and the first match wins, so a command
// never reaches the model and a shared location is never treated as
// chat.
func Classify(msg *telegram.Message) Intent {
	text := strings.TrimSpace(msg.TextOrCaption())

	if strings.HasPrefix(text, "/") {
		name, args := splitCommand(text)
		return Intent{Kind: IntentCommand, Command: name, Args: args, Text: text}
	}
	if msg.Location != nil {
		return Intent{Kind: IntentLocation, Text: text}
	}
	if text == telegram.CancelButtonText {
		return Intent{Kind: IntentCancel, Text: text}
	}
	if len(msg.Photo) > 0 {
		return Intent{Kind: IntentPhoto, Text: text}
	}
	if msg.Voice != nil {
		return Intent{Kind: IntentVoice, Text: text}
	}

	lower := strings.ToLower(text)
	if isGreetingOnly(lower) {
		return Intent{Kind: IntentGreeting, Text: text}
	}
	if containsAny(lower, originPhrases) {
		return Intent{Kind: IntentOrigin, Text: text}
	}
	return Intent{
		Kind:        IntentChat,
		Text:        text,
		NeedsSearch: containsAny(lower, searchKeywords),
		NeedsImages: containsAny(lower, imageKeywords),
	}
}

// splitCommand parses "/weather@bot_name Hà Nội" into ("weather",
// "Hà Nội").
func splitCommand(text string) (string, string) {
	rest := ""
	cmd := text
	if i := strings.IndexAny(text, " \n"); i >= 0 {
		cmd, rest = text[:i], strings.TrimSpace(text[i+1:])
	}
	cmd = strings.TrimPrefix(cmd, "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), rest
}
