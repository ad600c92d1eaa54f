package weather

// wmoDescriptions maps WMO weather interpretation codes to Vietnamese
// descriptions with a leading emoji.
var wmoDescriptions = map[int]string{
	0:  "☀️ Trời quang đãng",
	1:  "🌤 Trời quang, ít mây",
	2:  "⛅ Có mây rải rác",
	3:  "☁️ Nhiều mây, u ám",
	45: "🌫 Sương mù",
	48: "🌫 Sương mù đóng băng",
	51: "🌦 Mưa phùn nhẹ",
	53: "🌦 Mưa phùn vừa",
	55: "🌧 Mưa phùn dày",
	56: "🌧 Mưa phùn băng giá nhẹ",
	57: "🌧 Mưa phùn băng giá dày",
	61: "🌧 Mưa nhẹ",
	63: "🌧 Mưa vừa",
	65: "🌧 Mưa to",
	66: "🌧 Mưa băng giá nhẹ",
	67: "🌧 Mưa băng giá nặng",
	71: "🌨 Tuyết rơi nhẹ",
	73: "🌨 Tuyết rơi vừa",
	75: "❄️ Tuyết rơi dày",
	77: "❄️ Hạt tuyết",
	80: "🌦 Mưa rào nhẹ",
	81: "🌧 Mưa rào vừa",
	82: "⛈ Mưa rào dữ dội",
	85: "🌨 Mưa tuyết nhẹ",
	86: "🌨 Mưa tuyết dày",
	95: "⛈ Dông bão",
	96: "⛈ Dông kèm mưa đá nhẹ",
	99: "⛈ Dông kèm mưa đá lớn",
}

// DescribeCode renders a WMO code in Vietnamese. Unknown codes get a
// neutral fallback.
func DescribeCode(code int) string {
	if d, ok := wmoDescriptions[code]; ok {
		return d
	}
	return "🌡 Thời tiết không xác định"
}

// DescribeWindDirection converts degrees to a Vietnamese compass
// direction.
func DescribeWindDirection(degrees float64) string {
	dirs := []string{
		"Bắc", "Đông Bắc", "Đông", "Đông Nam",
		"Nam", "Tây Nam", "Tây", "Tây Bắc",
	}
	for degrees < 0 {
		degrees += 360
	}
	idx := int((degrees+22.5)/45.0) % 8
	return dirs[idx]
}

// ComfortHint gives a short Vietnamese hint based on apparent
// temperature.
func ComfortHint(feelsLike float64) string {
	switch {
	case feelsLike >= 37:
		return "Trời rất nóng, hạn chế ra ngoài buổi trưa nhé!"
	case feelsLike >= 32:
		return "Trời nóng, nhớ uống đủ nước nha!"
	case feelsLike >= 25:
		return "Thời tiết dễ chịu, chúc một ngày tốt lành!"
	case feelsLike >= 18:
		return "Trời hơi se lạnh, mặc thêm áo khoác mỏng nhé!"
	case feelsLike >= 10:
		return "Trời lạnh, nhớ giữ ấm nha!"
	default:
		return "Trời rất lạnh, mặc thật ấm vào nhé!"
	}
}
