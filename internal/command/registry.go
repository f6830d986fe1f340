package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kapu/markov-kakao-bot-go/internal/adapter"
	"github.com/kapu/markov-kakao-bot-go/internal/util"
)

// ErrDuplicateCommand is returned when two descriptors claim the same name or
// alias.
var ErrDuplicateCommand = errors.New("duplicate command")

// Registry maps command names and aliases to descriptors. It is built once
// and never modified afterwards, so lookups need no locking.
type Registry struct {
	descriptors []Descriptor
	index       map[string]int
}

// NewRegistry validates descriptors and builds the lookup table. Names and
// aliases are case-insensitive and must be unique across the registry.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		index:       make(map[string]int, len(descriptors)),
	}

	for _, desc := range descriptors {
		desc.Name = util.Normalize(desc.Name)
		if desc.Name == "" {
			return nil, fmt.Errorf("command name must not be empty")
		}
		if desc.Handler == nil {
			return nil, fmt.Errorf("command %q has no handler", desc.Name)
		}
		if desc.MinArgs < 0 {
			return nil, fmt.Errorf("command %q has negative MinArgs", desc.Name)
		}
		if desc.Permission == nil {
			desc.Permission = Everyone()
		}

		aliases := make([]string, 0, len(desc.Aliases))
		for _, alias := range desc.Aliases {
			if alias = util.Normalize(alias); alias != "" {
				aliases = append(aliases, alias)
			}
		}
		desc.Aliases = aliases

		pos := len(r.descriptors)
		for _, key := range append([]string{desc.Name}, aliases...) {
			if _, exists := r.index[key]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateCommand, key)
			}
			r.index[key] = pos
		}
		r.descriptors = append(r.descriptors, desc)
	}

	return r, nil
}

// Lookup resolves a name or alias.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	if r == nil || name == "" {
		return Descriptor{}, false
	}
	pos, ok := r.index[strings.ToLower(name)]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[pos], true
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	return len(r.descriptors)
}

// Names returns the canonical names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.descriptors))
	for i, desc := range r.descriptors {
		names[i] = desc.Name
	}
	return names
}

// HelpEntries describes every command for the help listing.
func (r *Registry) HelpEntries() []adapter.HelpEntry {
	if r == nil {
		return nil
	}
	entries := make([]adapter.HelpEntry, len(r.descriptors))
	for i, desc := range r.descriptors {
		entries[i] = adapter.HelpEntry{
			Name:        desc.Name,
			Aliases:     append([]string(nil), desc.Aliases...),
			Usage:       desc.Usage,
			Description: desc.Description,
		}
	}
	return entries
}
