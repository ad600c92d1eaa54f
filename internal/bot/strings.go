package bot

// Fixed Vietnamese replies used when a flow cannot proceed. Keeping
// them in one place makes the copy easy to review.
const (
	msgAIUnavailable = "Xin lỗi, mình đang gặp chút trục trặc 😓. Bạn thử lại sau một lát nhé!"
	msgAITimeout     = "Câu này hơi khó, mình nghĩ lâu quá rồi 😅. Bạn hỏi lại giúp mình nhé!"

	msgSearchUnavailable = "Tính năng tìm kiếm chưa được bật trên bot này. Bạn hỏi mình trực tiếp nhé!"
	msgSearchFailed      = "Mình không tìm kiếm được lúc này 😓. Bạn thử lại sau nhé!"
	msgSearchUsage       = "Bạn muốn tìm gì? Ví dụ: /search tin tức công nghệ hôm nay"

	msgImageUnavailable = "Tính năng tìm ảnh chưa được bật trên bot này."
	msgImageNotFound    = "Mình không tìm thấy ảnh phù hợp 😓. Bạn thử từ khóa khác nhé!"
	msgImageUsage       = "Bạn muốn xem ảnh gì? Ví dụ: /image hoàng hôn trên biển"
	msgImageSearching   = "Đang tìm ảnh cho bạn... 🔍"

	msgVoiceUsage      = "Bạn muốn mình nói gì? Ví dụ: /voice xin chào buổi sáng"
	msgVoiceTooLong    = "Câu này dài quá để chuyển thành giọng nói 😅. Bạn rút ngắn lại giúp mình nhé!"
	msgVoiceFailed     = "Mình không tạo được giọng nói lúc này 😓. Bạn thử lại sau nhé!"
	msgVoiceNotSupport = "Mình chưa nghe được tin nhắn thoại 😅. Bạn gõ chữ giúp mình nhé!"

	msgWeatherUnavailable = "Mình không lấy được thông tin thời tiết lúc này 😓. Bạn thử lại sau nhé!"
	msgWeatherNeedPlace   = "Bạn muốn xem thời tiết ở đâu? Chia sẻ vị trí hoặc gõ tên thành phố nhé!"
	msgWeatherNoMatch     = "Mình không tìm thấy địa điểm này 😓. Bạn kiểm tra lại tên thành phố nhé!"

	msgLocationSaved     = "Đã lưu vị trí của bạn! 📍"
	msgLocationCancelled = "Đã hủy. Bạn cần gì cứ nhắn mình nhé!"

	msgMemoryCleared = "Đã xóa lịch sử trò chuyện. Chúng ta bắt đầu lại nhé! 🆕"
	msgMemoryEmpty   = "Chưa có lịch sử trò chuyện nào trong phiên hiện tại."

	msgAdminOnly    = "Lệnh này chỉ dành cho quản trị viên."
	msgLastAdmin    = "Không thể thực hiện: đây là quản trị viên cuối cùng."
	msgUserNotFound = "Không tìm thấy người dùng này."

	msgDailyOn      = "Đã bật thông báo thời tiết hàng ngày! 🌅 Mình sẽ gửi vào mỗi buổi sáng."
	msgDailyOff     = "Đã tắt thông báo thời tiết hàng ngày."
	msgDailyNeedLoc = "Bạn cần lưu vị trí trước. Dùng /location để chia sẻ vị trí nhé!"

	msgBroadcastUsage = "Cú pháp: /broadcast <nội dung thông báo>"
	msgPromoteUsage   = "Cú pháp: /promote <telegram_id>"
	msgDemoteUsage    = "Cú pháp: /demote <telegram_id>"

	msgThinkingPhoto  = "🖼️ Mình đang phân tích ảnh của bạn, đợi mình 30-60 giây nhé..."
	msgThinkingSearch = "🔍 Đang xử lý thông tin tìm kiếm và chuẩn bị câu trả lời..."
	msgThinkingLong   = "🤔 Câu này cần suy nghĩ kỹ, đợi mình 30-60 giây nhé..."
)
