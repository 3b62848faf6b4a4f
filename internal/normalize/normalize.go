// Package normalize converts the loosely-typed values arriving from clients
// and from the divergent catalog relations into canonical scalars. Functions
// here are pure and never return errors: malformed input degrades to empty or
// partial results.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PaymentMethods canonicalizes a payment-method value into a deduplicated,
// sorted slice. It accepts a string slice, an arbitrary slice, a map (values
// are taken as members), or a string which is tried as a JSON array first and
// as a comma-separated list second. nil yields an empty slice.
func PaymentMethods(raw any) []string {
	var members []string

	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		members = v
	case []any:
		for _, item := range v {
			members = append(members, stringify(item))
		}
	case map[string]any:
		for _, item := range v {
			members = append(members, stringify(item))
		}
	case string:
		members = splitMethods(v)
	default:
		members = splitMethods(stringify(raw))
	}

	seen := make(map[string]bool, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// splitMethods parses a string as a JSON array when possible, falling back to
// a comma-separated list.
func splitMethods(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			out := make([]string, 0, len(arr))
			for _, item := range arr {
				out = append(out, stringify(item))
			}
			return out
		}
	}
	return strings.Split(s, ",")
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// DiscountPercent extracts a percentage from a loosely-typed discount value.
// The first numeric substring is used, a trailing '%' is tolerated, and
// anything outside [0,100] is rejected. Returns nil when no valid percentage
// is present; otherwise the value rounded to 2 decimal places.
func DiscountPercent(raw any) *float64 {
	var s string
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case string:
		s = v
	default:
		s = stringify(v)
	}

	match := numberPattern.FindString(s)
	if match == "" {
		return nil
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	if n < 0 || n > 100 {
		return nil
	}
	n = Round2(n)
	return &n
}

// Number parses a loosely-typed value as a finite number. The second return
// distinguishes "field absent or unparsable" from "field is zero".
func Number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// NumericString reports whether s is a non-empty string of decimal digits,
// i.e. usable as a strict numeric identifier.
func NumericString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
