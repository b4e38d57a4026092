// Package device holds the static registry of emulated device profiles
// used by the mobile audit pipeline.
package device

import "sort"

// Profile describes a device viewport to emulate during an audit.
type Profile struct {
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	IsMobile bool   `json:"isMobile"`
	HasTouch bool   `json:"hasTouch"`
}

// DefaultName is the profile used when a requested device is unknown.
const DefaultName = "iPhone 14"

var registry = map[string]Profile{
	"iPhone SE": {
		Name:     "iPhone SE",
		Width:    375,
		Height:   667,
		IsMobile: true,
		HasTouch: true,
	},
	"iPhone 14": {
		Name:     "iPhone 14",
		Width:    390,
		Height:   844,
		IsMobile: true,
		HasTouch: true,
	},
	"iPhone 14 Pro Max": {
		Name:     "iPhone 14 Pro Max",
		Width:    430,
		Height:   932,
		IsMobile: true,
		HasTouch: true,
	},
	"Pixel 7": {
		Name:     "Pixel 7",
		Width:    412,
		Height:   915,
		IsMobile: true,
		HasTouch: true,
	},
	"Galaxy S23": {
		Name:     "Galaxy S23",
		Width:    360,
		Height:   780,
		IsMobile: true,
		HasTouch: true,
	},
	"iPad Mini": {
		Name:     "iPad Mini",
		Width:    768,
		Height:   1024,
		IsMobile: true,
		HasTouch: true,
	},
}

// Resolve returns the profile registered under name. Unknown names fall
// back to the default profile rather than erroring.
func Resolve(name string) Profile {
	if p, ok := registry[name]; ok {
		return p
	}
	return registry[DefaultName]
}

// Names returns all registered device names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
