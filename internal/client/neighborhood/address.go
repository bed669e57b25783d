package neighborhood

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/atinyakov/ResQWave/internal/models"
)

// Address is a decoded neighborhood address.
type Address struct {
	Coordinates models.Coordinates
	Text        string
}

// ParseAddress decodes the JSON document the backend stores in address
// columns. Two coordinate layouts are accepted: a "lng, lat" string under
// "coordinates", or separate latitude/lat and longitude/lng fields holding
// numbers or numeric strings. Missing coordinates decode as zero.
//
// It reports false for a nil, empty or non-JSON address.
func ParseAddress(raw *string) (Address, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return Address{}, false
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(*raw), &doc); err != nil {
		return Address{}, false
	}

	var a Address
	if coords, ok := doc["coordinates"].(string); ok && coords != "" {
		parts := strings.Split(coords, ",")
		if len(parts) == 2 {
			a.Coordinates.Longitude = number(strings.TrimSpace(parts[0]))
			a.Coordinates.Latitude = number(strings.TrimSpace(parts[1]))
		}
	} else if hasKey(doc, "latitude", "lat") {
		a.Coordinates.Latitude = number(firstSet(doc["latitude"], doc["lat"]))
		a.Coordinates.Longitude = number(firstSet(doc["longitude"], doc["lng"]))
	}

	a.Text = *raw
	for _, key := range []string{"address", "formattedAddress"} {
		if s, ok := doc[key].(string); ok && s != "" {
			a.Text = s
			break
		}
	}
	return a, true
}

func hasKey(doc map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := doc[k]; ok {
			return true
		}
	}
	return false
}

// firstSet returns the first value that is neither nil, zero nor empty.
func firstSet(vals ...any) any {
	for _, v := range vals {
		switch x := v.(type) {
		case nil:
		case string:
			if x != "" {
				return x
			}
		case float64:
			if x != 0 {
				return x
			}
		default:
			return x
		}
	}
	return nil
}

// number converts a JSON number or numeric string, yielding 0 otherwise.
func number(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// count is a household or resident count that the backend sends either as a
// number or as a string. Anything unparsable decodes as 0.
type count int

func (c *count) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*c = count(x)
	case string:
		*c = count(leadingInt(x))
	default:
		*c = 0
	}
	return nil
}

// leadingInt parses the optional sign and digits at the start of s, so
// "12 households" yields 12.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// avatar keeps a photo reference only when the backend sends it as a string.
type avatar string

func (a *avatar) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*a = ""
		return nil
	}
	*a = avatar(s)
	return nil
}
