// Package settings resolves and persists the configuration record that drives
// header derivation: which response fields to emit and the cache lifetimes for
// the default, search and authenticated contexts.
package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Storage keys of the configuration record.
const (
	KeyEmitETag            = "emit_etag"
	KeyWeakETag            = "weak_etag"
	KeyEmitLastModified    = "emit_last_modified"
	KeyEmitExpires         = "emit_expires"
	KeyEmitCacheControl    = "emit_cache_control"
	KeyMaxAgeDefault       = "max_age_default"
	KeyMaxAgeSearch        = "max_age_search"
	KeyMaxAgeAuthenticated = "max_age_authenticated"
)

// Settings is the resolved configuration record.
// It is passed around by value and never mutated once resolved.
type Settings struct {
	EmitETag         bool
	WeakETag         bool
	EmitLastModified bool
	EmitExpires      bool
	EmitCacheControl bool
	// Max-ages in seconds.
	MaxAgeDefault       int
	MaxAgeSearch        int
	MaxAgeAuthenticated int
}

// Defaults returns the documented default record.
func Defaults() Settings {
	return Settings{
		EmitETag:            true,
		WeakETag:            true,
		EmitLastModified:    true,
		EmitExpires:         true,
		EmitCacheControl:    true,
		MaxAgeDefault:       86400,
		MaxAgeSearch:        0,
		MaxAgeAuthenticated: 0,
	}
}

// Resolve normalizes a submitted record.
//
// Toggles are true only if present and truthy. Max-ages are accepted only if
// present, integral and non-negative; anything else keeps the value from
// previous, so a malformed submit never resets what an administrator set.
// Unknown keys are ignored. Resolve never fails.
func Resolve(raw map[string]any, previous Settings) Settings {
	return Settings{
		EmitETag:            truthy(raw[KeyEmitETag]),
		WeakETag:            truthy(raw[KeyWeakETag]),
		EmitLastModified:    truthy(raw[KeyEmitLastModified]),
		EmitExpires:         truthy(raw[KeyEmitExpires]),
		EmitCacheControl:    truthy(raw[KeyEmitCacheControl]),
		MaxAgeDefault:       maxAge(raw, KeyMaxAgeDefault, previous.MaxAgeDefault),
		MaxAgeSearch:        maxAge(raw, KeyMaxAgeSearch, previous.MaxAgeSearch),
		MaxAgeAuthenticated: maxAge(raw, KeyMaxAgeAuthenticated, previous.MaxAgeAuthenticated),
	}
}

// FromStored resolves a record as read from storage.
// Missing keys take their default before the record is normalized.
func FromStored(raw map[string]any) Settings {
	defaults := Defaults()
	if raw == nil {
		return defaults
	}
	merged := defaults.Map()
	for k, v := range raw {
		if _, known := merged[k]; known {
			merged[k] = v
		}
	}
	return Resolve(merged, defaults)
}

// Map returns the storable form of the record: exactly the documented keys,
// toggles as 1 or 0 and max-ages as ints.
func (s Settings) Map() map[string]any {
	return map[string]any{
		KeyEmitETag:            flag(s.EmitETag),
		KeyWeakETag:            flag(s.WeakETag),
		KeyEmitLastModified:    flag(s.EmitLastModified),
		KeyEmitExpires:         flag(s.EmitExpires),
		KeyEmitCacheControl:    flag(s.EmitCacheControl),
		KeyMaxAgeDefault:       s.MaxAgeDefault,
		KeyMaxAgeSearch:        s.MaxAgeSearch,
		KeyMaxAgeAuthenticated: s.MaxAgeAuthenticated,
	}
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// truthy mirrors form-submission semantics: unchecked boxes are absent,
// checked boxes carry any non-empty value.
//
// This is stricter than a plain emptiness check: "false", "off" and "no"
// (any case) are false too, not just "" and "0".
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "", "0", "false", "off", "no":
			return false
		}
		return true
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case int:
		return val != 0
	case int8:
		return val != 0
	case int16:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case uint:
		return val != 0
	case uint8:
		return val != 0
	case uint16:
		return val != 0
	case uint32:
		return val != 0
	case uint64:
		return val != 0
	case float32:
		return val != 0
	case float64:
		return val != 0
	}
	return true
}

func maxAge(raw map[string]any, key string, fallback int) int {
	v, ok := raw[key]
	if !ok {
		return fallback
	}
	if n, ok := seconds(v); ok && n >= 0 {
		return n
	}
	return fallback
}

func seconds(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int8:
		return int(val), true
	case int16:
		return int(val), true
	case int32:
		return int(val), true
	case int64:
		return clampInt64(val)
	case uint8:
		return int(val), true
	case uint16:
		return int(val), true
	case uint32:
		return clampInt64(int64(val))
	case uint:
		if uint64(val) > math.MaxInt32 {
			return math.MaxInt32, true
		}
		return int(val), true
	case uint64:
		if val > math.MaxInt32 {
			return math.MaxInt32, true
		}
		return int(val), true
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return clampInt64(n)
		}
		if f, err := val.Float64(); err == nil {
			return fromFloat(f)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return clampInt64(n)
		}
	}
	return 0, false
}

func fromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(f), true
}

// clampInt64 caps values at 2^31-1 seconds (see delta-seconds overflow rules).
func clampInt64(n int64) (int, bool) {
	if n > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if n < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(n), true
}
