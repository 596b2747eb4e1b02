package rpc

import (
	"encoding/json"
	"sort"
)

// Args carries the positional and keyword arguments of one call, still encoded.
type Args struct {
	Positional []json.RawMessage
	Keyword    map[string]json.RawMessage
}

// Bind decodes the arguments into dst following the parameter list names.
// Positional arguments fill names in order; keyword arguments fill the rest by name.
// Every name must be bound exactly once.
func (a Args) Bind(names []string, dst ...any) error {
	if len(names) != len(dst) {
		panic("rpc: Bind names and dst length mismatch")
	}
	if len(a.Positional) > len(names) {
		return InvalidArguments("takes %d positional arguments but %d were given", len(names), len(a.Positional))
	}

	raw := make([]json.RawMessage, len(names))
	copy(raw, a.Positional)

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	keys := make([]string, 0, len(a.Keyword))
	for k := range a.Keyword {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		i, ok := index[k]
		if !ok {
			return InvalidArguments("got an unexpected keyword argument '%s'", k)
		}
		if i < len(a.Positional) {
			return InvalidArguments("got multiple values for argument '%s'", k)
		}
		raw[i] = a.Keyword[k]
	}

	for i, n := range names {
		if raw[i] == nil {
			return InvalidArguments("missing required argument: '%s'", n)
		}
		if err := json.Unmarshal(raw[i], dst[i]); err != nil {
			return InvalidArguments("invalid value for argument '%s'", n)
		}
	}
	return nil
}

// Empty reports whether no arguments were passed.
func (a Args) Empty() bool {
	return len(a.Positional) == 0 && len(a.Keyword) == 0
}

// NoArgs rejects any argument, for methods without parameters.
func (a Args) NoArgs() error {
	return a.Bind(nil)
}
