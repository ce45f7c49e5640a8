package database

import (
	"sort"

	"go.uber.org/zap"
)

// Name is an interned identifier. Equality and map keying use Hash only.
type Name struct {
	Text string
	Hash uint32
}

// NewName builds a Name without interning it in any table.
func NewName(text string) Name {
	return Name{Text: text, Hash: HashName(text)}
}

// IsZero reports whether n is the empty name.
func (n Name) IsZero() bool { return n.Hash == 0 }

func (n Name) String() string { return n.Text }

// Collision records two distinct texts that share a 32-bit hash.
type Collision struct {
	Hash     uint32
	Existing string
	New      string
}

// NameTable interns text into Names. A single canonical Name exists per
// distinct text for the lifetime of the table.
type NameTable struct {
	byText     map[string]Name
	byHash     map[uint32]string
	collisions []Collision
	logger     *zap.Logger
}

func newNameTable(logger *zap.Logger) *NameTable {
	return &NameTable{
		byText: make(map[string]Name),
		byHash: make(map[uint32]string),
		logger: logger,
	}
}

// Get returns the canonical Name for text, interning it on first use.
func (t *NameTable) Get(text string) Name {
	if text == "" {
		return Name{}
	}
	if n, ok := t.byText[text]; ok {
		return n
	}
	n := NewName(text)
	t.bind(n)
	return n
}

// register interns a Name that was produced elsewhere (e.g. decoded from a
// file or carried by a primitive from another database).
func (t *NameTable) register(n Name) {
	if n.Text == "" {
		return
	}
	if _, ok := t.byText[n.Text]; ok {
		return
	}
	t.bind(n)
}

func (t *NameTable) bind(n Name) {
	if existing, ok := t.byHash[n.Hash]; ok && existing != n.Text {
		t.collisions = append(t.collisions, Collision{Hash: n.Hash, Existing: existing, New: n.Text})
		t.logger.Warn("name hash collision",
			zap.Uint32("hash", n.Hash),
			zap.String("existing", existing),
			zap.String("new", n.Text),
		)
	} else if !ok {
		t.byHash[n.Hash] = n.Text
	}
	t.byText[n.Text] = n
}

// Lookup returns the text bound to hash, if any.
func (t *NameTable) Lookup(hash uint32) (Name, bool) {
	text, ok := t.byHash[hash]
	if !ok {
		return Name{}, false
	}
	return Name{Text: text, Hash: hash}, true
}

// Texts returns every interned text, sorted.
func (t *NameTable) Texts() []string {
	out := make([]string, 0, len(t.byText))
	for text := range t.byText {
		out = append(out, text)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of interned texts.
func (t *NameTable) Len() int { return len(t.byText) }

// Collisions returns every hash collision seen so far.
func (t *NameTable) Collisions() []Collision {
	out := make([]Collision, len(t.collisions))
	copy(out, t.collisions)
	return out
}
