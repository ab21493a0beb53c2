package investigation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingParam is returned when a template names a parameter that was
// not supplied
var ErrMissingParam = errors.New("missing template parameter")

// placeholderRe matches {name} placeholders and the {{ / }} brace escapes
var placeholderRe = regexp.MustCompile(`\{\{|\}\}|\{(\w+)\}`)

// Render substitutes {name} placeholders from params
func Render(tmpl string, params map[string]string) (string, error) {
	var missing []string

	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, strings.Join(missing, ", "))
	}
	return out, nil
}

// Placeholders lists the parameter names a template refers to, in order of
// first use
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
