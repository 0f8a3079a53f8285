// Package symbols loads the dense symbol registry and subscribe list that
// tell the writer which upstream names to stream and where each one lands
// in the shared-memory slot table. Both files are loaded once at startup
// and never mutated afterward.
package symbols

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Registry maps an uppercase symbol name to its dense symbol_id, along with
// the max id seen (n_symbols - 1 per the slot-table header).
type Registry struct {
	ids    map[string]uint64
	maxID  uint64
	hasAny bool
}

// Lookup returns the symbol_id for name, or false if name is unknown.
func (r *Registry) Lookup(name string) (uint64, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// NSymbols returns max(symbol_id)+1, the value the slot-table header's
// n_symbols field must match.
func (r *Registry) NSymbols() uint64 {
	if !r.hasAny {
		return 0
	}
	return r.maxID + 1
}

// Len returns the number of distinct symbols in the registry.
func (r *Registry) Len() int {
	return len(r.ids)
}

// LoadRegistry reads a tab-separated "<id>\t<NAME>" file, one record per
// line. Lines that are empty or whose first non-whitespace character is
// '#' are ignored. Duplicate ids or duplicate names are rejected.
func LoadRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbols: open registry %s: %w", path, err)
	}
	defer f.Close()

	reg := &Registry{ids: make(map[string]uint64)}
	seenIDs := make(map[uint64]string)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("symbols: %s:%d: expected <id>\\t<NAME>, got %q", path, lineNo, line)
		}

		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("symbols: %s:%d: invalid symbol_id %q: %w", path, lineNo, parts[0], err)
		}
		name := strings.ToUpper(strings.TrimSpace(parts[1]))
		if name == "" {
			return nil, fmt.Errorf("symbols: %s:%d: empty symbol name", path, lineNo)
		}

		if prior, dup := seenIDs[id]; dup {
			return nil, fmt.Errorf("symbols: %s:%d: duplicate symbol_id %d (already used by %s)", path, lineNo, id, prior)
		}
		if _, dup := reg.ids[name]; dup {
			return nil, fmt.Errorf("symbols: %s:%d: duplicate symbol name %s", path, lineNo, name)
		}

		seenIDs[id] = name
		reg.ids[name] = id
		if !reg.hasAny || id > reg.maxID {
			reg.maxID = id
			reg.hasAny = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("symbols: reading %s: %w", path, err)
	}
	if !reg.hasAny {
		return nil, fmt.Errorf("symbols: registry %s is empty", path)
	}

	return reg, nil
}

// LoadSubscribeList reads a newline-separated list of symbol names,
// trimming whitespace, uppercasing, and skipping blank lines and lines
// whose first non-whitespace character is '#'.
func LoadSubscribeList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbols: open subscribe list %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || trimmed[0] == '#' {
			continue
		}
		out = append(out, strings.ToUpper(trimmed))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("symbols: reading %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("symbols: subscribe list %s is empty", path)
	}
	return out, nil
}

// Validate checks that every entry in subscribeList exists in reg,
// returning an error naming the first unknown symbol found.
func Validate(subscribeList []string, reg *Registry) error {
	for _, name := range subscribeList {
		if _, ok := reg.Lookup(name); !ok {
			return fmt.Errorf("symbols: subscribed symbol %s not present in registry", name)
		}
	}
	return nil
}

// SubscribedIDs resolves every entry of subscribeList to its symbol_id via
// reg, assuming Validate has already succeeded.
func SubscribedIDs(subscribeList []string, reg *Registry) map[string]uint64 {
	out := make(map[string]uint64, len(subscribeList))
	for _, name := range subscribeList {
		id, _ := reg.Lookup(name)
		out[name] = id
	}
	return out
}
