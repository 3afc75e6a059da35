package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// OptionName is the key the configuration record is stored under.
	OptionName = "http_response_fields"
	// VersionOptionName is the key the stored schema version is kept under.
	VersionOptionName = "http_response_fields_version"
	// Version is the current schema version.
	Version = "1.0"
)

// Store is a key/value store for option records.
// Values are untyped maps as they come from storage; they are resolved into
// Settings by the Loader.
//
// Implementations must be thread-safe!
type Store interface {
	// Get returns the record for key and whether it exists.
	// A missing record is not an error.
	Get(ctx context.Context, key string) (map[string]any, bool, error)
	// Set stores the record under key, replacing any previous record.
	Set(ctx context.Context, key string, value map[string]any) error
}

// Scope selects which set of options a store operates on.
// A network-wide installation shares one record between all sites,
// otherwise every site has its own. The record schema is identical.
type Scope string

// Network is the scope shared by all sites of an installation.
const Network Scope = "network"

// Site returns the scope of a single site.
func Site(id int64) Scope {
	return Scope("site:" + strconv.FormatInt(id, 10))
}

// ParseScope parses "network" or "site:<id>".
func ParseScope(s string) (Scope, error) {
	if s == string(Network) {
		return Network, nil
	}
	if idStr, ok := strings.CutPrefix(s, "site:"); ok {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			return "", fmt.Errorf("settings: invalid site id in scope %q", s)
		}
		return Site(id), nil
	}
	return "", fmt.Errorf("settings: unknown scope %q", s)
}

func encodeRecord(value map[string]any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("settings: encode record: %w", err)
	}
	return b, nil
}

// decodeRecord keeps numbers as json.Number so integers survive the round trip.
func decodeRecord(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var value map[string]any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("settings: decode record: %w", err)
	}
	return value, nil
}
