package tracking

import (
	"errors"
	"fmt"

	"github.com/dubeme/eagerload/metadata"
)

// ErrUntrackedOwner reports a relationship snapshot write attempted on behalf
// of an instance the tracker has never seen. The surrounding pipeline must
// register owners before their children's fixups run, so hitting this means a
// sequencing bug in the caller, not bad input data.
var ErrUntrackedOwner = errors.New("owner instance is not tracked")

type entityKey struct {
	typeName string
	key      any
}

// Tracker is the identity map of one unit of work. Instances are identified
// by entity type name plus key field value. Single-writer access is assumed
// during row fixup.
type Tracker struct {
	entries map[entityKey]*Entry
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[entityKey]*Entry),
	}
}

// Track begins tracking an instance, returning the existing entry if the
// instance is already tracked
func (t *Tracker) Track(et *metadata.EntityType, instance metadata.Record) (*Entry, error) {
	key, ok := et.Key(instance)
	if !ok {
		return nil, fmt.Errorf("instance of %s has no %s value", et.Name, et.KeyField)
	}

	ek := entityKey{typeName: et.Name, key: key}
	if entry, exists := t.entries[ek]; exists {
		return entry, nil
	}

	entry := &Entry{
		entityType:   et,
		instance:     instance,
		refSnapshots: make(map[string]any),
		colSnapshots: make(map[string][]any),
	}
	t.entries[ek] = entry
	return entry, nil
}

// Entry returns the tracking entry for an instance, if any
func (t *Tracker) Entry(et *metadata.EntityType, instance metadata.Record) (*Entry, bool) {
	key, ok := et.Key(instance)
	if !ok {
		return nil, false
	}

	entry, exists := t.entries[entityKey{typeName: et.Name, key: key}]
	return entry, exists
}

// Len returns the number of tracked instances
func (t *Tracker) Len() int {
	return len(t.entries)
}
