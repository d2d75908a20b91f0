package record

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jonathan/cv-editor/internal/types"
)

// ChangeKind identifies which part of the record an update touched
type ChangeKind string

// Change kinds delivered to subscribers
const (
	ChangePersonal   ChangeKind = "personal"
	ChangeContent    ChangeKind = "content"
	ChangeVisibility ChangeKind = "visibility"
	ChangeReplace    ChangeKind = "replace"
)

// Change describes a single applied update
type Change struct {
	Kind ChangeKind
	// Key is the personal field or section key; empty for ChangeReplace
	Key string
}

// Listener is notified after an update has been applied
type Listener func(Change)

// Store holds the live CV record. Every update replaces the whole value of
// one key, so readers never observe a half-applied change.
type Store struct {
	mu        sync.RWMutex
	rec       types.Record
	listeners map[int]Listener
	nextID    int
}

// NewStore creates a store seeded with the built-in example data
func NewStore() *Store {
	return NewStoreFrom(Default())
}

// NewStoreFrom creates a store holding a copy of rec
func NewStoreFrom(rec types.Record) *Store {
	return &Store{rec: rec.Clone(), listeners: make(map[int]Listener)}
}

// Subscribe registers fn for change notifications and returns a function that removes it
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Snapshot returns a deep copy of the current record
func (s *Store) Snapshot() types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Clone()
}

// Replace swaps in rec as the whole record
func (s *Store) Replace(rec types.Record) {
	s.mu.Lock()
	s.rec = rec.Clone()
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeReplace})
}

// Personal returns the value of a personal field
func (s *Store) Personal(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.rec.Personal[key]
	return v, ok
}

// Section returns a copy of the stored section
func (s *Store) Section(key types.SectionKey) (types.Section, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.rec.Sections[key]
	if !ok {
		return types.Section{}, false
	}
	return sec.Clone(), true
}

// SetPersonal replaces the value of one personal field
func (s *Store) SetPersonal(key, value string) error {
	if !types.IsPersonalKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	s.mu.Lock()
	if s.rec.Personal == nil {
		s.rec.Personal = make(types.PersonalInfo, len(types.PersonalKeys))
	}
	s.rec.Personal[key] = value
	s.mu.Unlock()
	s.notify(Change{Kind: ChangePersonal, Key: key})
	return nil
}

// SetSectionText replaces a section body with a markup fragment.
// Surrounding whitespace is trimmed, as editors tend to append a newline.
func (s *Store) SetSectionText(key types.SectionKey, text string) error {
	return s.setContent(key, types.TextContent(strings.TrimSpace(text)))
}

// SetSectionEntries replaces the entry list of a structured section
func (s *Store) SetSectionEntries(key types.SectionKey, entries []types.Entry) error {
	normalized, err := NormalizeEntries(key, entries)
	if err != nil {
		return err
	}
	return s.setContent(key, types.EntriesContent(normalized))
}

// AddEntry appends an entry to a structured section
func (s *Store) AddEntry(key types.SectionKey, entry types.Entry) error {
	return s.editEntries(key, func(list []types.Entry) ([]types.Entry, error) {
		return append(list, entry), nil
	})
}

// UpdateEntry replaces the entry at idx
func (s *Store) UpdateEntry(key types.SectionKey, idx int, entry types.Entry) error {
	return s.editEntries(key, func(list []types.Entry) ([]types.Entry, error) {
		if idx < 0 || idx >= len(list) {
			return nil, ErrEntryIndex
		}
		list[idx] = entry
		return list, nil
	})
}

// DeleteEntry removes the entry at idx
func (s *Store) DeleteEntry(key types.SectionKey, idx int) error {
	return s.editEntries(key, func(list []types.Entry) ([]types.Entry, error) {
		if idx < 0 || idx >= len(list) {
			return nil, ErrEntryIndex
		}
		return append(list[:idx], list[idx+1:]...), nil
	})
}

// SetVisible toggles whether a section is rendered. Content is kept either way.
func (s *Store) SetVisible(key types.SectionKey, visible bool) error {
	if _, ok := types.Schema(key); !ok {
		return unknownSection(key)
	}
	s.mu.Lock()
	sec := s.sectionLocked(key)
	sec.Visible = visible
	s.rec.Sections[key] = sec
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeVisibility, Key: string(key)})
	return nil
}

func (s *Store) setContent(key types.SectionKey, content types.Content) error {
	if _, ok := types.Schema(key); !ok {
		return unknownSection(key)
	}
	s.mu.Lock()
	sec := s.sectionLocked(key)
	sec.Content = content
	s.rec.Sections[key] = sec
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeContent, Key: string(key)})
	return nil
}

// editEntries builds a new list from a copy of the current one and stores it whole
func (s *Store) editEntries(key types.SectionKey, edit func([]types.Entry) ([]types.Entry, error)) error {
	schema, ok := types.Schema(key)
	if !ok {
		return unknownSection(key)
	}
	if schema.Kind != types.KindStructured {
		return ErrNotStructured
	}

	s.mu.Lock()
	sec := s.sectionLocked(key)
	var current []types.Entry
	if sec.Content.Kind == types.ContentEntries {
		current = sec.Content.Clone().Entries
	}
	next, err := edit(current)
	if err == nil {
		next, err = NormalizeEntries(key, next)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	sec.Content = types.EntriesContent(next)
	s.rec.Sections[key] = sec
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeContent, Key: string(key)})
	return nil
}

// sectionLocked returns the stored section, creating a visible empty one if absent.
// Callers must hold s.mu for writing.
func (s *Store) sectionLocked(key types.SectionKey) types.Section {
	if s.rec.Sections == nil {
		s.rec.Sections = make(map[types.SectionKey]types.Section, len(types.SectionOrder))
	}
	sec, ok := s.rec.Sections[key]
	if !ok {
		sec = types.Section{Key: key, Visible: true}
	}
	return sec
}

// NormalizeEntries checks entries against the section schema and returns
// copies with every schema field present
func NormalizeEntries(key types.SectionKey, entries []types.Entry) ([]types.Entry, error) {
	schema, ok := types.Schema(key)
	if !ok {
		return nil, unknownSection(key)
	}
	if schema.Kind != types.KindStructured {
		return nil, ErrNotStructured
	}

	out := make([]types.Entry, 0, len(entries))
	for _, e := range entries {
		for field := range e {
			if !schema.HasField(field) {
				return nil, &EntryFieldError{Section: key, Field: field}
			}
		}
		n := make(types.Entry, len(schema.Fields))
		for _, f := range schema.Fields {
			n[f.Name] = e[f.Name]
		}
		out = append(out, n)
	}
	return out, nil
}
