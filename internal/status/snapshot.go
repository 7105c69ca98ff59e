package status

import (
	"strconv"
	"strings"
)

// Snapshot is one fetched application-status record. It is transient:
// only the internal percent ever reaches durable state.
type Snapshot struct {
	ID            string
	ReceptionDate string // as reported; empty when absent

	Display  DisplayStatus
	Internal InternalStatus
}

// DisplayStatus is the public-facing status shown to the applicant.
type DisplayStatus struct {
	ID    int
	Name  string
	Color string
}

// InternalStatus carries the processing stage and its progress percent.
type InternalStatus struct {
	Name    string
	Percent *int // nil when the source reports no usable number
}

// NormalizePercent collapses the source's loosely-typed percent field into
// an integer in [0,100] or nil. Accepted raw shapes: integers, integral
// floats (JSON numbers) and decimal strings. Everything else is absent.
func NormalizePercent(v any) *int {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return boundPercent(x)
	case int64:
		return boundPercent(int(x))
	case float64:
		n := int(x)
		if float64(n) != x {
			return nil
		}
		return boundPercent(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		return boundPercent(n)
	default:
		return nil
	}
}

func boundPercent(n int) *int {
	if n < 0 || n > 100 {
		return nil
	}
	return &n
}

// ExtractID pulls an application number out of free-form text: all decimal
// digits concatenated, valid when there are at least 10 of them. Returns ""
// when the text does not look like an application number at all.
func ExtractID(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return ""
	}
	return digits
}
