// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Options are engine options assembled once at startup. Values are
// string, bool, int64, or float64. Options must be treated as
// read-only once the server is running.
type Options map[string]any

// ParseValue coerces a command-line option value: "true"/"false"
// become bools, integers become int64, other numbers float64, and
// anything else stays a string.
func ParseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// Names returns the option names in sorted order.
func (o Options) Names() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Bool returns a boolean option, or fallback when it is unset.
func (o Options) Bool(name string, fallback bool) (bool, error) {
	value, ok := o[name]
	if !ok {
		return fallback, nil
	}
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("option %q: %q is not a boolean", name, v)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("option %q: %v (%T) is not a boolean", name, value, value)
	}
}

// String returns a string option, or fallback when it is unset.
// Numbers and bools are formatted.
func (o Options) String(name, fallback string) string {
	value, ok := o[name]
	if !ok {
		return fallback
	}
	return FormatValue(value)
}

// FormatValue renders an option value the way it would be written on
// a command line.
func FormatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Key returns a canonical string for the option set, usable as a cache
// key. Equal option sets produce equal keys.
func (o Options) Key() string {
	var builder strings.Builder
	for _, name := range o.Names() {
		fmt.Fprintf(&builder, "%s=%T:%s;", name, o[name], FormatValue(o[name]))
	}
	return builder.String()
}
