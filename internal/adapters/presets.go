package adapters

import "strings"

// Preset is a named pair of public resolvers offered for one-click setup.
type Preset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Primary     string `json:"primary"`
	Secondary   string `json:"secondary"`
	Description string `json:"description"`
}

var presets = []Preset{
	{
		ID:          "google",
		Name:        "Google",
		Primary:     "8.8.8.8",
		Secondary:   "8.8.4.4",
		Description: "Reliable, low latency",
	},
	{
		ID:          "cloudflare",
		Name:        "Cloudflare",
		Primary:     "1.1.1.1",
		Secondary:   "1.0.0.1",
		Description: "Fast, privacy-focused",
	},
	{
		ID:          "quad9",
		Name:        "Quad9",
		Primary:     "9.9.9.9",
		Secondary:   "149.112.112.112",
		Description: "Blocks known malicious domains",
	},
	{
		ID:          "opendns",
		Name:        "OpenDNS",
		Primary:     "208.67.222.222",
		Secondary:   "208.67.220.220",
		Description: "Optional content filtering",
	},
}

// Presets returns the built-in resolver pairs.
func Presets() []Preset {
	return append([]Preset(nil), presets...)
}

// PresetByID looks a preset up by ID, ignoring case.
func PresetByID(id string) (Preset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.ID, strings.TrimSpace(id)) {
			return p, true
		}
	}
	return Preset{}, false
}
