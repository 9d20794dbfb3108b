package logger

import "strings"

// piiKeys are field-name fragments whose string values are masked before
// logging. Covers the identifying columns of a verbal-autopsy record.
var piiKeys = []string{"name", "surname", "national_id"}

// RedactName masks a personal name for safe logging.
// "Adaeze Okonkwo" → "Ad***"; names of ≤2 characters are fully masked.
func RedactName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) <= 2 {
		return "***"
	}
	return name[:2] + "***"
}

func redactValue(key, val string) string {
	if val == "" {
		return val
	}
	k := strings.ToLower(key)
	for _, frag := range piiKeys {
		if strings.Contains(k, frag) {
			return RedactName(val)
		}
	}
	return val
}
