package geoip

import "strings"

// FlagEmoji converts a two-letter country code to its flag emoji by
// mapping each letter onto the regional indicator block. Codes that are
// not exactly two ASCII letters yield an empty string.
func FlagEmoji(countryCode string) string {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if len(code) != 2 {
		return ""
	}
	var b strings.Builder
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + c - 'A')
	}
	return b.String()
}

// FormatIPDisplay renders an IP with its flag and country name for
// display columns. Unresolved IPs come back unchanged.
func FormatIPDisplay(ip string, geo *GeoInfo) string {
	if geo == nil || geo.CountryName == "" {
		return ip
	}
	if flag := FlagEmoji(geo.CountryCode); flag != "" {
		return ip + " " + flag + " " + geo.CountryName
	}
	return ip + " " + geo.CountryName
}
