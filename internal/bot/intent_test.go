package bot

import (
	"testing"

	"github.com/justduck/relaybot/internal/telegram"
)

func msgWithText(text string) *telegram.Message {
	return &telegram.Message{Text: text, From: &telegram.User{ID: 1}, Chat: telegram.Chat{ID: 1}}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		msg  *telegram.Message
		want IntentKind
	}{
		{"command", msgWithText("/reset"), IntentCommand},
		{"command with args", msgWithText("/weather Hà Nội"), IntentCommand},
		{"cancel button", msgWithText(telegram.CancelButtonText), IntentCancel},
		{"greeting", msgWithText("xin chào"), IntentGreeting},
		{"greeting with punctuation", msgWithText("Hello!"), IntentGreeting},
		{"origin question", msgWithText("ai tạo ra bạn vậy"), IntentOrigin},
		{"search keywords stay chat", msgWithText("tin tức bitcoin hôm nay"), IntentChat},
		{"image keywords stay chat", msgWithText("cho xem ảnh hoàng hôn"), IntentChat},
		{"plain chat", msgWithText("kể cho mình một câu chuyện"), IntentChat},
		{"long sentence starting with greeting", msgWithText("chào bạn mình muốn hỏi về cách nấu phở bò truyền thống"), IntentChat},
		{
			"location payload",
			&telegram.Message{From: &telegram.User{ID: 1}, Location: &telegram.Location{Latitude: 1, Longitude: 2}},
			IntentLocation,
		},
		{
			"photo payload",
			&telegram.Message{From: &telegram.User{ID: 1}, Photo: []telegram.PhotoSize{{FileID: "f"}}, Caption: "đây là gì"},
			IntentPhoto,
		},
		{
			"voice payload",
			&telegram.Message{From: &telegram.User{ID: 1}, Voice: &telegram.Voice{FileID: "v"}},
			IntentVoice,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.msg); got.Kind != tc.want {
				t.Fatalf("Classify = %s, want %s", got.Kind, tc.want)
			}
		})
	}
}

func TestClassifyEnrichmentFlags(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		wantSearch bool
		wantImages bool
	}{
		{"search only", "tin tức bitcoin", true, false},
		{"images only", "cho xem ảnh hoàng hôn", false, true},
		{"both", "tìm kiếm hình ảnh lễ hội hôm nay", true, true},
		{"neither", "dạo này bạn khỏe không", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(msgWithText(tc.text))
			if got.Kind != IntentChat {
				t.Fatalf("kind = %s, want chat", got.Kind)
			}
			if got.NeedsSearch != tc.wantSearch || got.NeedsImages != tc.wantImages {
				t.Fatalf("flags = (search %v, images %v), want (%v, %v)",
					got.NeedsSearch, got.NeedsImages, tc.wantSearch, tc.wantImages)
			}
		})
	}
}

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		in       string
		wantCmd  string
		wantArgs string
	}{
		{"/reset", "reset", ""},
		{"/weather Hà Nội", "weather", "Hà Nội"},
		{"/search@relay_bot giá vàng", "search", "giá vàng"},
		{"/DAILY on", "daily", "on"},
	}
	for _, tc := range cases {
		cmd, args := splitCommand(tc.in)
		if cmd != tc.wantCmd || args != tc.wantArgs {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tc.in, cmd, args, tc.wantCmd, tc.wantArgs)
		}
	}
}
