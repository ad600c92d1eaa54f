package bot

import "strings"

// Keyword lists steer free text into the search and image flows. The
// lists mix Vietnamese and English because users write both.
var searchKeywords = []string{
	"tin tức", "tin tuc", "mới nhất", "moi nhat", "hôm nay", "hom nay",
	"hiện tại", "hien tai", "bây giờ", "bay gio", "gần đây", "gan day",
	"giá", "gia vang", "giá vàng", "tỷ giá", "ty gia", "chứng khoán",
	"kết quả", "ket qua", "tỉ số", "ti so", "lịch thi đấu",
	"search", "tìm kiếm", "tim kiem", "tra cứu", "tra cuu",
	"news", "latest", "today", "current", "price",
}

var imageKeywords = []string{
	"hình ảnh", "hinh anh", "tấm hình", "tam hinh", "bức ảnh", "buc anh",
	"cho xem ảnh", "cho xem anh", "xem ảnh", "xem anh", "gửi ảnh", "gui anh",
	"tìm ảnh", "tim anh", "ảnh về", "anh ve",
	"picture", "image", "photo", "show me",
}

// complexKeywords mark requests that take the model a while, like
// composing or long analysis, so the user gets a wait notice first.
var complexKeywords = []string{
	"viết", "viet", "sáng tác", "sang tac", "phân tích", "phan tich",
	"giải thích chi tiết", "giai thich chi tiet", "mô tả", "mo ta",
	"kể", "tạo", "làm bài", "lam bai",
}

var greetingPhrases = []string{
	"xin chào", "xin chao", "chào bạn", "chao ban", "chào buổi sáng",
	"hello", "hi", "hey", "alo", "chào",
}

var originPhrases = []string{
	"ai tạo ra bạn", "ai tao ra ban", "bạn là ai", "ban la ai",
	"bạn do ai", "ban do ai", "người tạo ra bạn", "nguoi tao ra ban",
	"who made you", "who created you", "who are you",
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// isComplexRequest matches long composition or analysis prompts.
// Short messages answer fast enough without a notice.
func isComplexRequest(text string) bool {
	if len([]rune(text)) <= 30 {
		return false
	}
	return containsAny(strings.ToLower(text), complexKeywords)
}

// isGreetingOnly matches short standalone greetings, not sentences
// that merely start with one.
func isGreetingOnly(text string) bool {
	text = strings.TrimSpace(strings.Trim(text, "!.?"))
	if len([]rune(text)) > 30 {
		return false
	}
	for _, p := range greetingPhrases {
		if text == p || strings.HasPrefix(text, p+" ") && len([]rune(text)) <= len([]rune(p))+10 {
			return true
		}
	}
	return false
}
