package weather

import (
	"fmt"
	"strings"
	"time"
)

// FormatCurrent renders present conditions as a Vietnamese chat
// message.
func FormatCurrent(place string, cur Current) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌍 *Thời tiết tại %s*\n\n", place)
	fmt.Fprintf(&b, "%s\n", DescribeCode(cur.Code))
	fmt.Fprintf(&b, "🌡 Nhiệt độ: %.1f°C (cảm giác như %.1f°C)\n", cur.Temperature, cur.FeelsLike)
	fmt.Fprintf(&b, "💧 Độ ẩm: %d%%\n", cur.Humidity)
	fmt.Fprintf(&b, "💨 Gió: %.1f km/h hướng %s\n\n", cur.WindSpeed, DescribeWindDirection(cur.WindDirection))
	b.WriteString(ComfortHint(cur.FeelsLike))
	return b.String()
}

// FormatForecast renders a multi day outlook.
func FormatForecast(place string, days []Day) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 *Dự báo thời tiết %s*\n", place)
	for _, d := range days {
		fmt.Fprintf(&b, "\n*%s*\n%s\n🌡 %.0f°C - %.0f°C", formatDate(d.Date), DescribeCode(d.Code), d.TempMin, d.TempMax)
		if d.RainChance > 0 {
			fmt.Fprintf(&b, "\n☔ Khả năng mưa: %d%%", d.RainChance)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatDaily renders the morning notification message.
func FormatDaily(place string, cur Current, today *Day) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌅 *Chào buổi sáng!*\n\n")
	fmt.Fprintf(&b, "Thời tiết hôm nay tại *%s*:\n\n%s\n", place, DescribeCode(cur.Code))
	fmt.Fprintf(&b, "🌡 Hiện tại: %.1f°C (cảm giác như %.1f°C)\n", cur.Temperature, cur.FeelsLike)
	if today != nil {
		fmt.Fprintf(&b, "📈 Cao nhất: %.0f°C, thấp nhất: %.0f°C\n", today.TempMax, today.TempMin)
		if today.RainChance > 0 {
			fmt.Fprintf(&b, "☔ Khả năng mưa: %d%%\n", today.RainChance)
		}
	}
	fmt.Fprintf(&b, "💧 Độ ẩm: %d%%\n\n", cur.Humidity)
	b.WriteString(ComfortHint(cur.FeelsLike))
	return b.String()
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Thứ Hai",
	time.Tuesday:   "Thứ Ba",
	time.Wednesday: "Thứ Tư",
	time.Thursday:  "Thứ Năm",
	time.Friday:    "Thứ Sáu",
	time.Saturday:  "Thứ Bảy",
	time.Sunday:    "Chủ Nhật",
}

func formatDate(isoDate string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return isoDate
	}
	return fmt.Sprintf("%s, %02d/%02d", weekdayNames[t.Weekday()], t.Day(), int(t.Month()))
}
