package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Place is a resolved location.
type Place struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}

// cityAliases maps common unaccented or shorthand Vietnamese city
// names to the form the geocoder resolves reliably.
var cityAliases = map[string]string{
	"hn":          "Hà Nội",
	"ha noi":      "Hà Nội",
	"hanoi":       "Hà Nội",
	"hcm":         "Hồ Chí Minh",
	"tphcm":       "Hồ Chí Minh",
	"tp hcm":      "Hồ Chí Minh",
	"sai gon":     "Hồ Chí Minh",
	"saigon":      "Hồ Chí Minh",
	"sài gòn":     "Hồ Chí Minh",
	"ho chi minh": "Hồ Chí Minh",
	"da nang":     "Đà Nẵng",
	"danang":      "Đà Nẵng",
	"hue":         "Huế",
	"can tho":     "Cần Thơ",
	"cantho":      "Cần Thơ",
	"hai phong":   "Hải Phòng",
	"haiphong":    "Hải Phòng",
	"nha trang":   "Nha Trang",
	"da lat":      "Đà Lạt",
	"dalat":       "Đà Lạt",
	"vung tau":    "Vũng Tàu",
	"quy nhon":    "Quy Nhơn",
}

// NormalizeCity applies the alias table.
func NormalizeCity(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := cityAliases[key]; ok {
		return alias
	}
	return strings.TrimSpace(name)
}

// Geocode resolves a city name to coordinates via the Open-Meteo
// geocoding API.
func (c *Client) Geocode(ctx context.Context, city string) (Place, error) {
	city = NormalizeCity(city)
	q := url.Values{}
	q.Set("name", city)
	q.Set("count", "1")
	q.Set("language", "vi")
	q.Set("format", "json")

	var out struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, c.cfg.GeocodingBaseURL+"/v1/search?"+q.Encode(), "geocoding", &out); err != nil {
		return Place{}, err
	}
	if len(out.Results) == 0 {
		return Place{}, fmt.Errorf("no geocoding match for %q", city)
	}
	r := out.Results[0]
	return Place{Name: r.Name, Country: r.Country, Latitude: r.Latitude, Longitude: r.Longitude}, nil
}

// ReverseGeocode resolves coordinates to a human readable place name
// via Nominatim.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("format", "json")
	q.Set("accept-language", "vi")
	q.Set("zoom", "10")

	var out struct {
		Address struct {
			City     string `json:"city"`
			Town     string `json:"town"`
			Village  string `json:"village"`
			State    string `json:"state"`
			Country  string `json:"country"`
			Suburb   string `json:"suburb"`
			District string `json:"city_district"`
		} `json:"address"`
		DisplayName string `json:"display_name"`
	}
	if err := c.getJSON(ctx, c.cfg.NominatimBaseURL+"/reverse?"+q.Encode(), "nominatim", &out); err != nil {
		return Place{}, err
	}

	name := out.Address.City
	if name == "" {
		name = out.Address.Town
	}
	if name == "" {
		name = out.Address.Village
	}
	if name == "" {
		name = out.Address.State
	}
	if name == "" {
		name = out.DisplayName
	}
	return Place{Name: name, Country: out.Address.Country, Latitude: lat, Longitude: lon}, nil
}
