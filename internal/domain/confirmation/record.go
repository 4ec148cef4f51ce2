package confirmation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// UserID identifies a confirming user. Real ids start at 1, so 0 never survives Sanitize.
type UserID uint64

// Decode parses a stored record. Missing, non-JSON or non-array values decode to an
// empty set; reads never fail.
func Decode(raw string) []UserID {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []UserID{}
	}

	var entries []any
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&entries); err != nil {
		return []UserID{}
	}
	return Sanitize(entries)
}

// Encode serializes the set as a JSON array of integers.
func Encode(ids []UserID) string {
	if len(ids) == 0 {
		return "[]"
	}

	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	b.WriteByte(']')
	return b.String()
}

// Sanitize coerces every entry to a non-negative integer, then drops zeros and
// repeats. The first occurrence of an id keeps its position.
func Sanitize(entries []any) []UserID {
	out := make([]UserID, 0, len(entries))
	seen := make(map[UserID]struct{}, len(entries))
	for _, entry := range entries {
		id := coerce(entry)
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SanitizeIDs is Sanitize for already-typed ids.
func SanitizeIDs(ids []UserID) []UserID {
	entries := make([]any, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, id)
	}
	return Sanitize(entries)
}

// Contains reports membership using strict integer equality.
func Contains(ids []UserID, id UserID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// Add appends id when absent. The returned flag is false for a no-op.
func Add(ids []UserID, id UserID) ([]UserID, bool) {
	if id == 0 || Contains(ids, id) {
		return ids, false
	}

	next := make([]UserID, 0, len(ids)+1)
	next = append(next, ids...)
	next = append(next, id)
	return SanitizeIDs(next), true
}

// Remove deletes the first entry equal to id. The returned flag is false for a no-op.
func Remove(ids []UserID, id UserID) ([]UserID, bool) {
	for i, candidate := range ids {
		if candidate != id {
			continue
		}
		next := make([]UserID, 0, len(ids)-1)
		next = append(next, ids[:i]...)
		next = append(next, ids[i+1:]...)
		return next, true
	}
	return ids, false
}

func coerce(entry any) UserID {
	switch v := entry.(type) {
	case UserID:
		return v
	case uint64:
		return UserID(v)
	case int:
		if v < 0 {
			return 0
		}
		return UserID(v)
	case int64:
		if v < 0 {
			return 0
		}
		return UserID(v)
	case float64:
		return coerceFloat(v)
	case json.Number:
		if n, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return UserID(n)
		}
		if f, err := v.Float64(); err == nil {
			return coerceFloat(f)
		}
		return 0
	case string:
		return coerceString(v)
	default:
		return 0
	}
}

func coerceFloat(f float64) UserID {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f >= math.MaxUint64 {
		return 0
	}
	return UserID(math.Trunc(f))
}

// coerceString reads the leading run of digits ("12abc" -> 12, "abc" -> 0).
func coerceString(s string) UserID {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseUint(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return UserID(n)
}
