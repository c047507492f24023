package scl

import (
	"strconv"
	"strings"
)

// Characters the drive sprinkles into replies: ack, nack, buffered-ack and
// the key separator.
const noiseChars = "%?*="

// ParseNumericField extracts the signed integer following "<key>=". When the
// keyed form is missing or malformed it strips the key and noise characters
// and parses the first whitespace-delimited token instead.
func ParseNumericField(resp, key string) (int64, bool) {
	if raw, ok := keyedRun(resp, key, isIntChar); ok {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v, true
		}
	}
	tok, ok := fallbackToken(resp, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseCodeField extracts an alphanumeric code such as SC=000D or AL=0004.
func ParseCodeField(resp, key string) (string, bool) {
	if raw, ok := keyedRun(resp, key, isAlnum); ok && raw != "" {
		return raw, true
	}
	tok, ok := fallbackToken(resp, key)
	if !ok {
		return "", false
	}
	for i := 0; i < len(tok); i++ {
		if !isAlnum(tok[i]) {
			return "", false
		}
	}
	return tok, true
}

// ParseFloatField extracts a decimal value such as IV=1.25.
func ParseFloatField(resp, key string) (float64, bool) {
	if raw, ok := keyedRun(resp, key, isFloatChar); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v, true
		}
	}
	tok, ok := fallbackToken(resp, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func keyedRun(resp, key string, accept func(byte) bool) (string, bool) {
	marker := key + "="
	idx := strings.Index(resp, marker)
	if idx < 0 {
		return "", false
	}
	start := idx + len(marker)
	end := start
	for end < len(resp) && accept(resp[end]) {
		end++
	}
	return resp[start:end], true
}

func fallbackToken(resp, key string) (string, bool) {
	clean := resp
	if key != "" {
		clean = strings.ReplaceAll(clean, key, "")
	}
	for _, c := range noiseChars {
		clean = strings.ReplaceAll(clean, string(c), "")
	}
	fields := strings.Fields(clean)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func isIntChar(b byte) bool {
	return (b >= '0' && b <= '9') || b == '-'
}

func isFloatChar(b byte) bool {
	return isIntChar(b) || b == '.'
}

func isAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
