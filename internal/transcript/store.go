// Package transcript keeps the ordered, mutable conversation log built from
// streamed realtime events.
//
// A Store is owned by a single session goroutine and is not safe for
// concurrent use. Observers receive copies, never the live entries.
package transcript

import "sort"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UpdateMode selects how Update combines new text with the stored text.
type UpdateMode int

const (
	ModeAppend UpdateMode = iota
	ModeReplace
)

// Entry is one logical utterance tracked by its realtime item id.
type Entry struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Sequence int64  `json:"sequence"`
}

type Store struct {
	entries  []*Entry
	byID     map[string]*Entry
	nextSeq  int64
	onChange func([]Entry)
}

func NewStore() *Store {
	return &Store{byID: make(map[string]*Entry)}
}

// SetObserver registers fn to receive an ordered snapshot after every
// mutation. Passing nil removes the observer.
func (s *Store) SetObserver(fn func([]Entry)) {
	s.onChange = fn
}

func (s *Store) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Create adds a new entry with the next sequence number. It is a no-op when
// the id is already known.
func (s *Store) Create(id string, role Role, initialText string) {
	if s.Exists(id) {
		return
	}
	e := &Entry{
		ID:       id,
		Role:     role,
		Text:     initialText,
		Sequence: s.nextSeq,
	}
	s.nextSeq++
	s.entries = append(s.entries, e)
	s.byID[id] = e
	s.notify()
}

// Update appends to or replaces the text of an existing entry. Unknown ids
// are ignored; callers create entries first.
func (s *Store) Update(id, text string, mode UpdateMode) {
	e, ok := s.byID[id]
	if !ok {
		return
	}
	if mode == ModeAppend {
		e.Text += text
	} else {
		e.Text = text
	}
	s.notify()
}

// Get returns a copy of the entry for id.
func (s *Store) Get(id string) (Entry, bool) {
	e, ok := s.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (s *Store) Len() int { return len(s.entries) }

// Entries returns a copy of all entries ordered by ascending sequence.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (s *Store) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Entries())
}
