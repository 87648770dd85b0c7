// Package useragent derives coarse operating system and device categories
// from raw User-Agent strings.
//
// Classification walks an ordered rule table and the first rule with a
// matching substring wins, so a string that mentions several platforms
// always lands in the earliest listed category. Matching is case-insensitive.
package useragent

import "strings"

const (
	OSWindows = "Windows"
	OSMacOS   = "macOS"
	OSAndroid = "Android"
	OSIOS     = "iOS"
	OSLinux   = "Linux"
	OSOther   = "Other"

	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
)

// Rule maps any of its lower-case substrings to a category.
type Rule struct {
	Category string
	Patterns []string
}

// Rules is an ordered rule table with a fallback category.
type Rules struct {
	Ordered  []Rule
	Fallback string
}

var OSRules = Rules{
	Ordered: []Rule{
		{OSWindows, []string{"windows"}},
		{OSMacOS, []string{"macintosh", "mac os"}},
		{OSAndroid, []string{"android"}},
		{OSIOS, []string{"iphone", "ipad", "ipod"}},
		{OSLinux, []string{"linux"}},
	},
	Fallback: OSOther,
}

var DeviceRules = Rules{
	Ordered: []Rule{
		{DeviceMobile, []string{"mobile"}},
		{DeviceTablet, []string{"tablet"}},
	},
	Fallback: DeviceDesktop,
}

// Classify returns the category of the first rule matching ua.
func (rs Rules) Classify(ua string) string {
	ua = strings.ToLower(ua)
	for _, r := range rs.Ordered {
		for _, p := range r.Patterns {
			if strings.Contains(ua, p) {
				return r.Category
			}
		}
	}
	return rs.Fallback
}

func OS(ua string) string {
	return OSRules.Classify(ua)
}

func Device(ua string) string {
	return DeviceRules.Classify(ua)
}
