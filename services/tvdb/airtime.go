package tvdb

import (
	"sort"
	"strings"
)

// The airtime provider reports a wall-clock air time but often no timezone.
// The broadcasting network (or its country) pins down which timezone that
// wall clock belongs to.

var networkTimezones = map[string]string{
	// US
	"HBO":             "America/New_York",
	"Max":             "America/New_York",
	"NBC":             "America/New_York",
	"CBS":             "America/New_York",
	"ABC":             "America/New_York",
	"FOX":             "America/New_York",
	"AMC":             "America/New_York",
	"FX":              "America/New_York",
	"Showtime":        "America/New_York",
	"The CW":          "America/New_York",
	"Adult Swim":      "America/New_York",
	"Paramount+":      "America/New_York",
	"Peacock":         "America/New_York",
	"Hulu":            "America/New_York",
	"Disney+":         "America/New_York",
	"Netflix":         "America/Los_Angeles",
	"Apple TV+":       "America/Los_Angeles",
	"Crunchyroll":     "America/Los_Angeles",
	// UK
	"BBC One":         "Europe/London",
	"BBC Two":         "Europe/London",
	"ITV":             "Europe/London",
	"Channel 4":       "Europe/London",
	"Sky Atlantic":    "Europe/London",
	"Sky":             "Europe/London",
	// Asia-Pacific
	"tvN":             "Asia/Seoul",
	"JTBC":            "Asia/Seoul",
	"SBS":             "Asia/Seoul",
	"NHK":             "Asia/Tokyo",
	"Fuji TV":         "Asia/Tokyo",
	"TV Tokyo":        "Asia/Tokyo",
	"Tokyo MX":        "Asia/Tokyo",
	"Nine Network":    "Australia/Sydney",
	"Seven Network":   "Australia/Sydney",
}

// networkKeys sorted longest first so partial matches are deterministic and
// prefer the most specific name.
var networkKeys []string

func init() {
	networkKeys = make([]string, 0, len(networkTimezones))
	for k := range networkTimezones {
		networkKeys = append(networkKeys, k)
	}
	sort.Slice(networkKeys, func(i, j int) bool {
		if len(networkKeys[i]) != len(networkKeys[j]) {
			return len(networkKeys[i]) > len(networkKeys[j])
		}
		return networkKeys[i] < networkKeys[j]
	})
}

var countryTimezones = map[string]string{
	"usa": "America/New_York",
	"can": "America/New_York",
	"gbr": "Europe/London",
	"irl": "Europe/Dublin",
	"fra": "Europe/Paris",
	"deu": "Europe/Berlin",
	"esp": "Europe/Madrid",
	"ita": "Europe/Rome",
	"nld": "Europe/Amsterdam",
	"swe": "Europe/Stockholm",
	"dnk": "Europe/Copenhagen",
	"nor": "Europe/Oslo",
	"pol": "Europe/Warsaw",
	"tur": "Europe/Istanbul",
	"jpn": "Asia/Tokyo",
	"kor": "Asia/Seoul",
	"chn": "Asia/Shanghai",
	"ind": "Asia/Kolkata",
	"aus": "Australia/Sydney",
	"nzl": "Pacific/Auckland",
	"bra": "America/Sao_Paulo",
	"mex": "America/Mexico_City",
	"zaf": "Africa/Johannesburg",
}

// inferTimezone matches the network name (exact, then longest partial,
// case-insensitive) and falls back to the network's country code. Returns
// empty when nothing matches; the caller then emits a date-only candidate.
func inferTimezone(network, country string) string {
	if network != "" {
		if tz, ok := networkTimezones[network]; ok {
			return tz
		}
		lower := strings.ToLower(network)
		for _, key := range networkKeys {
			if strings.Contains(lower, strings.ToLower(key)) {
				return networkTimezones[key]
			}
		}
	}
	if country != "" {
		if tz, ok := countryTimezones[strings.ToLower(country)]; ok {
			return tz
		}
	}
	return ""
}
