// Package table implements an open-addressed hash table for the VM's
// globals map and its string-interning set. Go's builtin map can't serve
// the interning use case directly: interning must find an existing
// *object.String by (length, hash, bytes) before any String object exists
// to use as a map key, which needs the linear-probe structure below.
package table

import "loxvm/internal/object"

const maxLoad = 0.75

type entry struct {
	key            *object.String
	value          interface{}
	present        bool // false means an empty slot; tombstones stay present
	tombstone      bool
}

// Table is a linear-probing open-addressed hash map keyed by interned
// strings.
type Table struct {
	count   int // live entries + tombstones
	entries []entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Count reports the number of live (non-tombstone) entries.
func (t *Table) Count() int {
	live := 0
	for _, e := range t.entries {
		if e.present && !e.tombstone {
			live++
		}
	}
	return live
}

// Get looks up key, returning its value and whether it was found.
func (t *Table) Get(key *object.String) (interface{}, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	e := t.findEntry(t.entries, key)
	if !e.present || e.tombstone {
		return nil, false
	}
	return e.value, true
}

// Set inserts or updates key's value. It returns true iff a brand-new key
// was added, as opposed to merely updating an existing one.
func (t *Table) Set(key *object.String, value interface{}) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow(growCapacity(len(t.entries)))
	}

	idx := t.findIndex(t.entries, key)
	e := &t.entries[idx]
	isNewKey := !e.present || e.tombstone
	if isNewKey && !e.tombstone {
		t.count++
	}

	e.key = key
	e.value = value
	e.present = true
	e.tombstone = false
	return isNewKey
}

// Delete replaces key's entry with a tombstone so later probes keep
// skipping past this slot.
func (t *Table) Delete(key *object.String) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if !e.present || e.tombstone {
		return false
	}
	e.key = nil
	e.value = true
	e.present = true
	e.tombstone = true
	return true
}

// FindString is the specialized probe interning uses before any
// *object.String exists as a lookup key: it compares (length, hash) first
// and only then does a byte comparison.
func (t *Table) FindString(chars string, hash uint32) (*object.String, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	capacity := len(t.entries)
	idx := int(hash) % capacity
	for {
		e := &t.entries[idx]
		if !e.present {
			return nil, false
		}
		if !e.tombstone && e.key.Hash == hash && len(e.key.Chars) == len(chars) && e.key.Chars == chars {
			return e.key, true
		}
		idx = (idx + 1) % capacity
	}
}

// AddAll copies every live entry of t into dst; tombstones are not copied.
// grow does its own rehash and does not call AddAll.
func (t *Table) AddAll(dst *Table) {
	for _, e := range t.entries {
		if e.present && !e.tombstone {
			dst.Set(e.key, e.value)
		}
	}
}

// Keys returns the live keys, in table (not insertion) order.
func (t *Table) Keys() []*object.String {
	keys := make([]*object.String, 0, t.Count())
	for _, e := range t.entries {
		if e.present && !e.tombstone {
			keys = append(keys, e.key)
		}
	}
	return keys
}

func (t *Table) findEntry(entries []entry, key *object.String) *entry {
	idx := t.findIndex(entries, key)
	return &entries[idx]
}

// findIndex implements the probe sequence (hash + i) mod capacity,
// returning the slot where key lives or where it should be inserted
// (reusing the first tombstone seen along the way, standard open-addressing
// practice).
func (t *Table) findIndex(entries []entry, key *object.String) int {
	capacity := len(entries)
	idx := int(key.Hash) % capacity
	var tombstoneIdx = -1
	for {
		e := &entries[idx]
		if !e.present {
			if tombstoneIdx != -1 {
				return tombstoneIdx
			}
			return idx
		}
		if e.tombstone {
			if tombstoneIdx == -1 {
				tombstoneIdx = idx
			}
		} else if e.key == key {
			return idx
		}
		idx = (idx + 1) % capacity
	}
}

func (t *Table) grow(capacity int) {
	newEntries := make([]entry, capacity)
	newCount := 0
	for _, e := range t.entries {
		if !e.present || e.tombstone {
			continue
		}
		idx := findIndexFresh(newEntries, e.key)
		newEntries[idx] = e
		newCount++
	}
	t.entries = newEntries
	t.count = newCount
}

// findIndexFresh probes a table known to contain no tombstones yet (used
// only while rehashing into a brand-new backing array).
func findIndexFresh(entries []entry, key *object.String) int {
	capacity := len(entries)
	idx := int(key.Hash) % capacity
	for entries[idx].present {
		idx = (idx + 1) % capacity
	}
	return idx
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}
