package job

import (
	"context"
	"reflect"
	"slices"
)

// Key names a shared resource for read/write fencing.
type Key string

// KeyOf derives the resource key of a Go type.
func KeyOf[T any]() Key {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return Key(t.String())
	}
	return Key(t.PkgPath() + "." + t.Name())
}

// Tracker maps each resource to the completion token of its last writer and
// the combined token of the reads issued since that write.
//
// Reads wait only on the last writer. Writes wait on the last writer and every
// reader recorded since it, then become the sole writer.
//
// A Tracker is owned by the scheduler goroutine and is not safe for
// concurrent use.
type Tracker struct {
	writers map[Key]Token
	readers map[Key]Token
}

func NewTracker() *Tracker {
	return &Tracker{
		writers: make(map[Key]Token, 32),
		readers: make(map[Key]Token, 32),
	}
}

// ReadDependency returns the token a read of key must wait on.
func (t *Tracker) ReadDependency(key Key) Token {
	return t.writers[key]
}

// WriteDependency returns the token a write of key must wait on.
func (t *Tracker) WriteDependency(key Key) Token {
	return Combine(t.writers[key], t.readers[key])
}

// Dependencies returns the combined token for an operation that reads and
// writes the given keys. A key present in both sets is treated as a write.
func (t *Tracker) Dependencies(reads, writes []Key) Token {
	deps := make([]Token, 0, len(reads)+len(writes))
	for _, k := range writes {
		deps = append(deps, t.WriteDependency(k))
	}
	for _, k := range reads {
		if slices.Contains(writes, k) {
			continue
		}
		deps = append(deps, t.ReadDependency(k))
	}
	return Combine(deps...)
}

// Record registers done as the completion of an operation with the given
// access sets.
func (t *Tracker) Record(reads, writes []Key, done Token) {
	for _, k := range writes {
		t.SetWriter(k, done)
	}
	for _, k := range reads {
		if slices.Contains(writes, k) {
			continue
		}
		t.AddReader(k, done)
	}
}

// SetWriter makes done the last writer of key and forgets earlier readers.
func (t *Tracker) SetWriter(key Key, done Token) {
	delete(t.readers, key)
	if done.IsDone() {
		delete(t.writers, key)
		return
	}
	t.writers[key] = done
}

// AddReader adds done to the concurrent readers of key.
func (t *Tracker) AddReader(key Key, done Token) {
	r := Combine(t.readers[key], done)
	if r.IsDone() {
		delete(t.readers, key)
		return
	}
	t.readers[key] = r
}

// Complete waits for every outstanding operation on keys and clears them.
func (t *Tracker) Complete(ctx context.Context, keys ...Key) error {
	for _, k := range keys {
		if err := t.WriteDependency(k).Wait(ctx); err != nil {
			return err
		}
		delete(t.writers, k)
		delete(t.readers, k)
	}
	return nil
}

// CompleteAll waits for every outstanding operation on every key.
func (t *Tracker) CompleteAll(ctx context.Context) error {
	all := make([]Token, 0, len(t.writers)+len(t.readers))
	for _, w := range t.writers {
		all = append(all, w)
	}
	for _, r := range t.readers {
		all = append(all, r)
	}
	if err := Combine(all...).Wait(ctx); err != nil {
		return err
	}
	clear(t.writers)
	clear(t.readers)
	return nil
}

// Outstanding returns the sorted keys that still have unfinished work.
func (t *Tracker) Outstanding() []Key {
	keys := make([]Key, 0, len(t.writers))
	for k := range t.writers {
		if !t.WriteDependency(k).IsDone() {
			keys = append(keys, k)
		}
	}
	for k := range t.readers {
		if _, ok := t.writers[k]; ok {
			continue
		}
		if !t.readers[k].IsDone() {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
