// Package table implements the open-addressed, linear-probed hash table
// used for both the VM's globals and the object heap's string intern table.
// Globals and locals are resolved by entirely different mechanisms (locals
// by compile-time stack slot, globals by name lookup), but the globals
// table and the interner want the same table shape, just keyed differently,
// so both share this one implementation.
package table

import "github.com/kristofer/lumen/pkg/value"

// Key is anything that can sit in a table slot: an interned string object
// (used by both the globals table, keyed by variable name, and the intern
// table itself, keyed by the string's own content). Table only needs a key
// to know its own hash and byte content — it never needs to know that keys
// are *object.String, which keeps this package free of a dependency on
// package object (object depends on table for its intern table, not the
// other way around).
type Key interface {
	Bytes() string
	Hash() uint32
}

const maxLoad = 0.75

type entry struct {
	key Key
	val value.Value
}

// Table is a hash table of Key -> value.Value. The zero value is an empty
// table, the same as New returns; entries are allocated on the first Set.
type Table struct {
	entries []entry
	count   int // live entries + tombstones, used for the load-factor check
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// Count returns the number of live (non-tombstone) entries.
func (t *Table) Count() int {
	live := 0
	for _, e := range t.entries {
		if e.key != nil && !isTombstone(e) {
			live++
		}
	}
	return live
}

func isTombstone(e entry) bool {
	return e.key == nil && e.val.IsBool() && e.val.AsBool()
}

func isEmpty(e entry) bool {
	return e.key == nil && e.val.IsNil()
}

// findEntry locates the slot key belongs in: either the live entry with
// that key, or the first empty/tombstone slot probed along the way (the
// first tombstone is preferred so repeated insert/delete doesn't grow the
// probe chain unboundedly).
func findEntry(entries []entry, key Key) int {
	capacity := len(entries)
	index := int(key.Hash()) % capacity
	var tombstone = -1
	for {
		e := &entries[index]
		if e.key == nil {
			if isEmpty(*e) {
				if tombstone != -1 {
					return tombstone
				}
				return index
			}
			if tombstone == -1 {
				tombstone = index
			}
		} else if e.key.Bytes() == key.Bytes() {
			return index
		}
		index = (index + 1) % capacity
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]entry, capacity)
	for i := range entries {
		entries[i] = entry{key: nil, val: value.NilVal()}
	}

	t.count = 0
	for _, e := range t.entries {
		if e.key == nil {
			continue
		}
		dst := findEntry(entries, e.key)
		entries[dst] = e
		t.count++
	}
	t.entries = entries
}

// Get returns the value stored for key and whether it was found.
func (t *Table) Get(key Key) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.NilVal(), false
	}
	idx := findEntry(t.entries, key)
	e := &t.entries[idx]
	if e.key == nil {
		return value.NilVal(), false
	}
	return e.val, true
}

// Set inserts or updates key's value, growing the table first if the load
// factor would exceed 0.75. It reports whether key was newly inserted
// (needed by SET_GLOBAL to detect and undo a failed assignment, and by
// DEFINE_GLOBAL's semantics of always succeeding).
func (t *Table) Set(key Key, val value.Value) bool {
	if len(t.entries) == 0 || float64(t.count+1) > float64(len(t.entries))*maxLoad {
		capacity := 8
		if len(t.entries) > 0 {
			capacity = len(t.entries) * 2
		}
		t.adjustCapacity(capacity)
	}

	idx := findEntry(t.entries, key)
	e := &t.entries[idx]
	isNewKey := e.key == nil
	if isNewKey && isEmpty(*e) {
		t.count++
	}
	e.key = key
	e.val = val
	return isNewKey
}

// Delete replaces key's entry with a tombstone so later probe sequences
// that passed through this slot while key was present keep working.
func (t *Table) Delete(key Key) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := findEntry(t.entries, key)
	e := &t.entries[idx]
	if e.key == nil {
		return false
	}
	e.key = nil
	e.val = value.BoolVal(true)
	return true
}

// FindString looks up an interned string by raw content, used exclusively
// by the interner (the caller has bytes and a precomputed hash but not yet
// a Key object to compare identity against).
func (t *Table) FindString(bytes string, hash uint32) Key {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := len(t.entries)
	index := int(hash) % capacity
	for {
		e := &t.entries[index]
		if e.key == nil {
			if isEmpty(*e) {
				return nil
			}
		} else if e.key.Hash() == hash && e.key.Bytes() == bytes {
			return e.key
		}
		index = (index + 1) % capacity
	}
}

// DeleteUnmarked removes every entry whose key is unreachable, as judged by
// marked. Used once per collection cycle to sweep the intern table before
// the object list sweep proper.
func (t *Table) DeleteUnmarked(marked func(Key) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !marked(e.key) {
			t.Delete(e.key)
		}
	}
}

// Reset discards every entry, live or tombstoned, returning the table to
// its just-New state.
func (t *Table) Reset() {
	t.entries = nil
	t.count = 0
}

// Each calls fn for every live entry. Used by the collector to mark every
// value reachable through the globals table.
func (t *Table) Each(fn func(key Key, val value.Value)) {
	for _, e := range t.entries {
		if e.key != nil && !isTombstone(e) {
			fn(e.key, e.val)
		}
	}
}
