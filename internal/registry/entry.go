package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Holding is a retention duration in seconds. Producers write it as a JSON
// number or a numeric string, with "inf" meaning never expire; it is always
// a plain float64 (possibly +Inf) once decoded.
type Holding float64

// Infinite is the never-expire retention sentinel.
func Infinite() Holding { return Holding(math.Inf(1)) }

// IsInfinite reports whether the entry is exempt from garbage collection.
func (h Holding) IsInfinite() bool { return math.IsInf(float64(h), 1) }

func (h Holding) Seconds() float64 { return float64(h) }

func (h Holding) MarshalJSON() ([]byte, error) {
	if h.IsInfinite() {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(h))
}

func (h *Holding) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*h = Holding(num)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("holding must be a number or numeric string, got %s", data)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inf", "infinite", "infinity":
		*h = Infinite()
		return nil
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("holding %q is not numeric: %w", s, err)
	}
	*h = Holding(num)
	return nil
}

// Entry is one path registration: the artifact it points at plus its
// lifecycle metadata. Created is unix seconds, taken from the artifact's
// on-disk time at registration.
type Entry struct {
	Path     string  `json:"path"`
	File     string  `json:"file"`
	User     string  `json:"user"`
	JobID    string  `json:"jobid,omitempty"`
	Created  float64 `json:"created"`
	Holding  Holding `json:"holding"`
	Checksum string  `json:"checksum,omitempty"`
}

// Registry maps logical path names to entries for one user. Key order
// carries no meaning; callers sort by path where order matters.
type Registry map[string]Entry

// Paths returns the registry's keys, unsorted.
func (r Registry) Paths() []string {
	out := make([]string, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	return out
}
