package telegram

// SecretTokenHeader carries the webhook secret set via setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Update is the inbound webhook envelope. Only the fields the bot
// consumes are mapped.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message"`
	EditedMessage *Message `json:"edited_message"`
}

// IncomingMessage returns the message carried by the update. An edit
// is treated like a fresh message so the user gets an answer either
// way.
func (u *Update) IncomingMessage() *Message {
	if u.Message != nil {
		return u.Message
	}
	return u.EditedMessage
}

type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from"`
	Chat      Chat        `json:"chat"`
	Date      int64       `json:"date"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []PhotoSize `json:"photo"`
	Voice     *Voice      `json:"voice"`
	Location  *Location   `json:"location"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Text returns the usable text of a message, falling back to the
// caption for media messages.
func (m *Message) TextOrCaption() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// LargestPhoto picks the highest resolution size Telegram offered.
func (m *Message) LargestPhoto() (PhotoSize, bool) {
	if len(m.Photo) == 0 {
		return PhotoSize{}, false
	}
	best := m.Photo[0]
	for _, p := range m.Photo[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best, true
}

// ReplyKeyboardMarkup and friends cover the two keyboards the bot
// uses, the location request and its removal.
type ReplyKeyboardMarkup struct {
	Keyboard        [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard"`
}

type KeyboardButton struct {
	Text            string `json:"text"`
	RequestLocation bool   `json:"request_location,omitempty"`
}

type ReplyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

// CancelButtonText labels the abort button shown alongside the
// location request keyboard.
const CancelButtonText = "❌ Hủy"

// LocationKeyboard builds the one-time keyboard prompting the user to
// share their position.
func LocationKeyboard() ReplyKeyboardMarkup {
	return ReplyKeyboardMarkup{
		Keyboard: [][]KeyboardButton{
			{{Text: "📍 Chia sẻ vị trí", RequestLocation: true}},
			{{Text: CancelButtonText}},
		},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

// RemoveKeyboard clears any reply keyboard from the chat.
func RemoveKeyboard() ReplyKeyboardRemove {
	return ReplyKeyboardRemove{RemoveKeyboard: true}
}
