package bot

import (
	"fmt"
	"strings"
	"time"
)

// vietnamTZ is fixed rather than loaded so the binary does not depend
// on tzdata being present in the container.
var vietnamTZ = time.FixedZone("ICT", 7*60*60)

const personaName = "Chat Bot được tạo bởi justduck"

// SystemPrompt builds the instruction block sent with every model
// call.
func SystemPrompt(now time.Time) string {
	local := now.In(vietnamTZ)
	var b strings.Builder
	b.WriteString("Bạn là " + personaName + ", một trợ lý thân thiện trò chuyện bằng tiếng Việt.\n")
	b.WriteString("Trả lời tự nhiên, ngắn gọn và hữu ích. Dùng tiếng Việt trừ khi người dùng viết bằng ngôn ngữ khác.\n")
	fmt.Fprintf(&b, "Thời gian hiện tại ở Việt Nam: %s.\n", local.Format("15:04 ngày 02/01/2006"))
	b.WriteString("Nếu không chắc chắn về thông tin, hãy nói rõ là bạn không chắc.")
	return b.String()
}

// SearchPrompt wraps a web search digest so the model answers from
// the retrieved context.
func SearchPrompt(query, digest string) string {
	var b strings.Builder
	b.WriteString("Dưới đây là kết quả tìm kiếm mới nhất:\n\n")
	b.WriteString(digest)
	b.WriteString("\n\nDựa vào các kết quả trên, hãy trả lời câu hỏi sau bằng tiếng Việt, ngắn gọn và nêu nguồn khi phù hợp: ")
	b.WriteString(query)
	return b.String()
}

// PhotoPrompt is the default instruction when a photo arrives without
// a caption.
func PhotoPrompt(caption string) string {
	if strings.TrimSpace(caption) != "" {
		return caption
	}
	return "Hãy mô tả bức ảnh này bằng tiếng Việt."
}

// OriginReply answers questions about who built the bot without
// spending a model call.
func OriginReply() string {
	return "Mình là " + personaName + " 🤖. Rất vui được trò chuyện với bạn!"
}

// GreetingReply is the canned response for standalone greetings.
func GreetingReply(firstName string) string {
	if firstName != "" {
		return fmt.Sprintf("Xin chào %s! 👋 Mình có thể giúp gì cho bạn hôm nay?", firstName)
	}
	return "Xin chào! 👋 Mình có thể giúp gì cho bạn hôm nay?"
}
