package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/justduck/relaybot/internal/telegram"
	"github.com/justduck/relaybot/internal/users"
	"github.com/justduck/relaybot/internal/weather"
)

const helpText = `🤖 *Danh sách lệnh*

/start - Bắt đầu trò chuyện
/help - Xem danh sách lệnh
/reset - Xóa lịch sử trò chuyện
/memory - Xem trạng thái bộ nhớ
/userinfo - Thông tin tài khoản của bạn
/getid - Xem ID Telegram của bạn
/search <từ khóa> - Tìm kiếm thông tin mới nhất
/image <từ khóa> - Tìm hình ảnh
/voice <nội dung> - Nhận câu trả lời bằng giọng nói
/weather [thành phố] - Thời tiết hiện tại
/forecast [thành phố] - Dự báo 3 ngày tới
/location - Cập nhật vị trí của bạn
/daily on|off|status - Thông báo thời tiết buổi sáng

Ngoài ra bạn cứ nhắn tin bình thường, mình sẽ trả lời!`

const adminHelpText = `🔧 *Lệnh quản trị*

/stats - Thống kê hệ thống
/users - Danh sách người dùng
/promote <id> - Cấp quyền quản trị
/demote <id> - Thu hồi quyền quản trị
/broadcast <nội dung> - Gửi thông báo tới mọi người
/testdaily - Chạy thử thông báo thời tiết`

func (r *Router) handleCommand(ctx context.Context, msg *telegram.Message, profile users.Profile, intent Intent) error {
	chatID := msg.Chat.ID

	switch intent.Command {
	case "start":
		reply := GreetingReply(profile.FirstName) + "\n\n" + helpText
		return r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{})

	case "help":
		reply := helpText
		if profile.Role == users.RoleAdmin {
			reply += "\n\n" + adminHelpText
		}
		return r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{})

	case "reset":
		if err := r.memory.Clear(ctx, chatID); err != nil {
			r.logger.Printf("bot: clear memory for %d: %v", chatID, err)
			return r.sender.SendMessage(ctx, chatID, msgAIUnavailable, telegram.SendOptions{})
		}
		return r.sender.SendMessage(ctx, chatID, msgMemoryCleared, telegram.SendOptions{})

	case "memory":
		return r.cmdMemory(ctx, chatID)

	case "userinfo":
		return r.sender.SendMessage(ctx, chatID, formatProfile(profile), telegram.SendOptions{})

	case "getid":
		reply := fmt.Sprintf("🆔 ID của bạn: `%d`\nID cuộc trò chuyện: `%d`", msg.From.ID, chatID)
		return r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{})

	case "search":
		if intent.Args == "" {
			return r.sender.SendMessage(ctx, chatID, msgSearchUsage, telegram.SendOptions{})
		}
		return r.handleSearch(ctx, chatID, intent.Args)

	case "image":
		if intent.Args == "" {
			return r.sender.SendMessage(ctx, chatID, msgImageUsage, telegram.SendOptions{})
		}
		return r.handleImages(ctx, chatID, intent.Args)

	case "voice":
		if intent.Args == "" {
			return r.sender.SendMessage(ctx, chatID, msgVoiceUsage, telegram.SendOptions{})
		}
		return r.handleChat(ctx, chatID, intent.Args, chatOptions{Voice: true})

	case "weather":
		return r.cmdWeather(ctx, msg, profile, intent.Args, false)

	case "forecast":
		return r.cmdWeather(ctx, msg, profile, intent.Args, true)

	case "location":
		r.pending.Set(chatID, PendingLocation)
		return r.sender.SendMessage(ctx, chatID, msgWeatherNeedPlace,
			telegram.SendOptions{ReplyMarkup: telegram.LocationKeyboard()})

	case "daily":
		return r.cmdDaily(ctx, chatID, profile, intent.Args)

	case "admin":
		if profile.Role != users.RoleAdmin {
			return r.sender.SendMessage(ctx, chatID, msgAdminOnly, telegram.SendOptions{})
		}
		return r.sender.SendMessage(ctx, chatID, adminHelpText, telegram.SendOptions{})

	case "stats":
		return r.adminOnly(ctx, chatID, profile, func() error { return r.cmdStats(ctx, chatID) })

	case "users":
		return r.adminOnly(ctx, chatID, profile, func() error { return r.cmdUsers(ctx, chatID) })

	case "promote":
		return r.adminOnly(ctx, chatID, profile, func() error {
			return r.cmdSetRole(ctx, chatID, intent.Args, users.RoleAdmin, msgPromoteUsage)
		})

	case "demote":
		return r.adminOnly(ctx, chatID, profile, func() error {
			return r.cmdSetRole(ctx, chatID, intent.Args, users.RoleMember, msgDemoteUsage)
		})

	case "broadcast":
		return r.adminOnly(ctx, chatID, profile, func() error {
			return r.cmdBroadcast(ctx, chatID, intent.Args)
		})

	case "testdaily":
		return r.adminOnly(ctx, chatID, profile, func() error { return r.cmdTestDaily(ctx, chatID) })

	default:
		return r.sender.SendMessage(ctx, chatID,
			"Mình chưa hiểu lệnh này 😅. Gõ /help để xem danh sách lệnh nhé!", telegram.SendOptions{})
	}
}

func (r *Router) adminOnly(ctx context.Context, chatID int64, profile users.Profile, fn func() error) error {
	if profile.Role != users.RoleAdmin {
		return r.sender.SendMessage(ctx, chatID, msgAdminOnly, telegram.SendOptions{})
	}
	return fn()
}

func (r *Router) cmdMemory(ctx context.Context, chatID int64) error {
	stats, err := r.memory.Stats(ctx, chatID)
	if err != nil {
		r.logger.Printf("bot: memory stats for %d: %v", chatID, err)
		return r.sender.SendMessage(ctx, chatID, msgAIUnavailable, telegram.SendOptions{})
	}
	if stats.TotalTurns == 0 {
		return r.sender.SendMessage(ctx, chatID, msgMemoryEmpty, telegram.SendOptions{})
	}
	reply := fmt.Sprintf("🧠 *Bộ nhớ trò chuyện*\n\nTổng số lượt: %d\nLượt của bạn: %d\nLượt cũ nhất: %s trước",
		stats.TotalTurns, stats.UserTurns, formatDuration(stats.OldestTurnAge))
	return r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{})
}

// cmdWeather resolves a place from the argument, the saved profile
// location, or an interactive prompt, in that order.
func (r *Router) cmdWeather(ctx context.Context, msg *telegram.Message, profile users.Profile, city string, forecast bool) error {
	chatID := msg.Chat.ID
	if r.weather == nil {
		return r.sender.SendMessage(ctx, chatID, msgWeatherUnavailable, telegram.SendOptions{})
	}

	var place weather.Place
	switch {
	case city != "":
		p, err := r.weather.Geocode(ctx, city)
		if err != nil {
			r.logger.Printf("bot: geocode %q: %v", city, err)
			return r.sender.SendMessage(ctx, chatID, msgWeatherNoMatch, telegram.SendOptions{})
		}
		place = p
	case profile.Location != nil:
		place = weather.Place{
			Name:      profile.Location.City,
			Country:   profile.Location.Country,
			Latitude:  profile.Location.Latitude,
			Longitude: profile.Location.Longitude,
		}
	default:
		r.pending.Set(chatID, PendingLocation)
		return r.sender.SendMessage(ctx, chatID, msgWeatherNeedPlace,
			telegram.SendOptions{ReplyMarkup: telegram.LocationKeyboard()})
	}

	if !forecast {
		return r.replyCurrentWeather(ctx, chatID, place, nil)
	}
	days, err := r.weather.FetchForecast(ctx, place.Latitude, place.Longitude, 3)
	if err != nil {
		r.logger.Printf("bot: fetch forecast: %v", err)
		return r.sender.SendMessage(ctx, chatID, msgWeatherUnavailable, telegram.SendOptions{})
	}
	name := place.Name
	if name == "" {
		name = fmt.Sprintf("%.3f, %.3f", place.Latitude, place.Longitude)
	}
	return r.sender.SendMessage(ctx, chatID, weather.FormatForecast(name, days), telegram.SendOptions{})
}

func (r *Router) cmdDaily(ctx context.Context, chatID int64, profile users.Profile, arg string) error {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on":
		if profile.Location == nil {
			return r.sender.SendMessage(ctx, chatID, msgDailyNeedLoc, telegram.SendOptions{})
		}
		enabled := true
		if _, err := r.users.Update(ctx, profile.TelegramID, users.Update{DailyWeather: &enabled}); err != nil {
			r.logger.Printf("bot: enable daily for %d: %v", profile.TelegramID, err)
			return r.sender.SendMessage(ctx, chatID, msgAIUnavailable, telegram.SendOptions{})
		}
		return r.sender.SendMessage(ctx, chatID, msgDailyOn, telegram.SendOptions{})

	case "off":
		disabled := false
		if _, err := r.users.Update(ctx, profile.TelegramID, users.Update{DailyWeather: &disabled}); err != nil {
			r.logger.Printf("bot: disable daily for %d: %v", profile.TelegramID, err)
			return r.sender.SendMessage(ctx, chatID, msgAIUnavailable, telegram.SendOptions{})
		}
		return r.sender.SendMessage(ctx, chatID, msgDailyOff, telegram.SendOptions{})

	case "status", "":
		status := "tắt"
		if profile.Preferences.DailyWeather {
			status = "bật"
		}
		loc := "chưa lưu"
		if profile.Location != nil && profile.Location.City != "" {
			loc = profile.Location.City
		}
		reply := fmt.Sprintf("🌅 *Thông báo thời tiết hàng ngày*\n\nTrạng thái: %s\nVị trí: %s\nGiờ gửi: %s",
			status, loc, profile.Preferences.NotifyTime)
		return r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{})

	default:
		return r.sender.SendMessage(ctx, chatID, "Cú pháp: /daily on|off|status", telegram.SendOptions{})
	}
}

func (r *Router) cmdStats(ctx context.Context, chatID int64) error {
	total, err := r.users.Count(ctx)
	if err != nil {
		r.logger.Printf("bot: count users: %v", err)
		return r.sender.SendMessage(ctx, chatID, msgAIUnavailable, telegram.SendOptions{})
	}
	admins, err := r.users.ListByRole(ctx, users.RoleAdmin)
	if err != nil {
		r.logger.Printf("bot: list admins: %v", err)
		return r.sender.SendMessage(ctx, chatID, msgAIUnavailable, telegram.SendOptions{})
	}
	subscribed := 0
	if all, err := r.users.ListAll(ctx); err == nil {
		for _, p := range all {
			if p.Preferences.DailyWeather {
				subscribed++
			}
		}
	}
	reply := fmt.Sprintf("📊 *Thống kê*\n\nNgười dùng: %d\nQuản trị viên: %d\nĐăng ký thời tiết: %d",
		total, len(admins), subscribed)
	return r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{})
}

func (r *Router) cmdUsers(ctx context.Context, chatID int64) error {
	all, err := r.users.ListAll(ctx)
	if err != nil {
		r.logger.Printf("bot: list users: %v", err)
		return r.sender.SendMessage(ctx, chatID, msgAIUnavailable, telegram.SendOptions{})
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 *Người dùng* (%d)\n", len(all))
	for _, p := range all {
		marker := ""
		if p.Role == users.RoleAdmin {
			marker = " 👑"
		}
		fmt.Fprintf(&b, "\n• %s (`%d`)%s", p.DisplayName(), p.TelegramID, marker)
	}
	return r.sender.SendMessage(ctx, chatID, b.String(), telegram.SendOptions{})
}

func (r *Router) cmdSetRole(ctx context.Context, chatID int64, arg string, role users.Role, usage string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return r.sender.SendMessage(ctx, chatID, usage, telegram.SendOptions{})
	}
	switch err := r.users.SetRole(ctx, id, role); {
	case errors.Is(err, users.ErrNotFound):
		return r.sender.SendMessage(ctx, chatID, msgUserNotFound, telegram.SendOptions{})
	case errors.Is(err, users.ErrLastAdmin):
		return r.sender.SendMessage(ctx, chatID, msgLastAdmin, telegram.SendOptions{})
	case err != nil:
		r.logger.Printf("bot: set role %d=%s: %v", id, role, err)
		return r.sender.SendMessage(ctx, chatID, msgAIUnavailable, telegram.SendOptions{})
	}
	verb := "cấp quyền quản trị cho"
	if role == users.RoleMember {
		verb = "thu hồi quyền quản trị của"
	}
	return r.sender.SendMessage(ctx, chatID, fmt.Sprintf("Đã %s `%d` ✅", verb, id), telegram.SendOptions{})
}

// cmdBroadcast fans the text out to every user and reports a tally.
// Individual failures, for example users who blocked the bot, do not
// stop the sweep.
func (r *Router) cmdBroadcast(ctx context.Context, chatID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return r.sender.SendMessage(ctx, chatID, msgBroadcastUsage, telegram.SendOptions{})
	}
	all, err := r.users.ListAll(ctx)
	if err != nil {
		r.logger.Printf("bot: list users for broadcast: %v", err)
		return r.sender.SendMessage(ctx, chatID, msgAIUnavailable, telegram.SendOptions{})
	}

	success, failed := 0, 0
	for i, p := range all {
		if i > 0 && r.cfg.BroadcastDelay > 0 {
			select {
			case <-time.After(r.cfg.BroadcastDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := r.sender.SendMessage(ctx, p.TelegramID, "📢 *Thông báo*\n\n"+text, telegram.SendOptions{}); err != nil {
			r.logger.Printf("bot: broadcast to %d: %v", p.TelegramID, err)
			failed++
			continue
		}
		success++
	}
	reply := fmt.Sprintf("Đã gửi thông báo: %d thành công, %d thất bại.", success, failed)
	return r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{})
}

func (r *Router) cmdTestDaily(ctx context.Context, chatID int64) error {
	if r.daily == nil {
		return r.sender.SendMessage(ctx, chatID, "Thông báo hàng ngày chưa được cấu hình.", telegram.SendOptions{})
	}
	success, failed := r.daily.Run(ctx)
	reply := fmt.Sprintf("🌅 Đã chạy thử thông báo thời tiết: %d thành công, %d thất bại.", success, failed)
	return r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{})
}

func formatProfile(p users.Profile) string {
	var b strings.Builder
	b.WriteString("👤 *Thông tin tài khoản*\n\n")
	fmt.Fprintf(&b, "Tên: %s\n", p.DisplayName())
	if p.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", p.Username)
	}
	fmt.Fprintf(&b, "ID: `%d`\n", p.TelegramID)
	fmt.Fprintf(&b, "Vai trò: %s\n", roleLabel(p.Role))
	if p.Location != nil && p.Location.City != "" {
		fmt.Fprintf(&b, "Vị trí: %s\n", p.Location.City)
	}
	daily := "tắt"
	if p.Preferences.DailyWeather {
		daily = "bật"
	}
	fmt.Fprintf(&b, "Thông báo thời tiết: %s", daily)
	return b.String()
}

func roleLabel(role users.Role) string {
	if role == users.RoleAdmin {
		return "Quản trị viên 👑"
	}
	return "Thành viên"
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%d giờ %d phút", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%d phút", int(d.Minutes()))
	default:
		return fmt.Sprintf("%d giây", int(d.Seconds()))
	}
}
