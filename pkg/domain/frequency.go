package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// MaxFrequencyHours is the largest interval accepted from callers: one year.
const MaxFrequencyHours = 8760.0

// Frequency is the minimum number of hours between two doses. Zero means the
// default applies. Older documents stored the value as a string, so decoding
// accepts numeric strings; anything else decodes to NaN and is left for the
// scheduler to treat as unusable.
type Frequency float64

// Hours returns the effective interval, substituting the default for zero.
func (f Frequency) Hours() float64 {
	if f == 0 {
		return DefaultFrequencyHours
	}
	return float64(f)
}

// Valid reports whether the frequency can be used to compute a due time.
func (f Frequency) Valid() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// MarshalJSON writes finite values as numbers, negatives included. NaN and
// infinities have no JSON number form and are written as the strings "NaN",
// "+Inf" and "-Inf", which UnmarshalJSON reads back unchanged.
func (f Frequency) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return json.Marshal(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes numbers, numeric strings, and null.
func (f *Frequency) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = Frequency(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
			*f = Frequency(v)
			return nil
		}
	}
	*f = Frequency(math.NaN())
	return nil
}
