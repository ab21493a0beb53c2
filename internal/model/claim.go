package model

import "strings"

// Institution is an organization under investigation
type Institution struct {
	Name string `json:"name"` // Unique key
	Site string `json:"site"` // Normalized website (no scheme, no www., no trailing slash)
}

// Axes is the ordered list of parameter names that make up a combination
// (e.g. ["einrichtung", "software"])
type Axes []string

// Combination is one concrete tuple of axis values, one value per axis
type Combination []string

// combinationSep never appears in CSV-loaded names
const combinationSep = "\x1f"

// Key returns a stable set key for the combination
func (c Combination) Key() string {
	return strings.Join(c, combinationSep)
}

// Complete reports whether every value is non-empty
func (c Combination) Complete() bool {
	if len(c) == 0 {
		return false
	}
	for _, v := range c {
		if v == "" {
			return false
		}
	}
	return true
}

// Params maps axis names to the combination's values
func (c Combination) Params(axes Axes) map[string]string {
	params := make(map[string]string, len(axes))
	for i, name := range axes {
		if i < len(c) {
			params[name] = c[i]
		}
	}
	return params
}

// String renders the combination for logs
func (c Combination) String() string {
	return strings.Join(c, " / ")
}
