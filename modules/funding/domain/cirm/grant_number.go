package cirm

import "regexp"

// Grant numbers look like "DISC1-12345" or "TRAN2": one or more letters, a run
// of digits, an optional letter, an optional hyphen and optional trailing
// alphanumerics. Cells may carry several numbers delimited by "/" or ";"; the
// pattern extracts each in order.
var grantNumberPattern = regexp.MustCompile(`[A-Za-z]+\d+[A-Za-z]?-?[A-Za-z0-9]*`)

// ParseGrantNumbers extracts every grant number from a raw cell value. The
// result is never nil so the field renders as [] in JSON.
func ParseGrantNumbers(raw string) []string {
	matches := grantNumberPattern.FindAllString(raw, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}
