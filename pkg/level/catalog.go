package level

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/hunt-engine/pkg/answer"
)

// Catalog is an immutable, validated chain of levels.
type Catalog struct {
	byID  map[string]Level
	order []string
}

// NewCatalog validates levels and orders them by their successor links.
//
// A level with an empty NextLevelID gets a successor derived from its id
// by incrementing the numeric suffix (L01 -> L02). When the derived id is
// not part of the catalog the level is terminal. After construction every
// level carries an explicit successor.
func NewCatalog(levels []Level) (*Catalog, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidCatalog)
	}

	byID := make(map[string]Level, len(levels))
	for _, l := range levels {
		if err := validateRecord(l); err != nil {
			return nil, err
		}
		if _, dup := byID[l.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate level id %q", ErrInvalidCatalog, l.ID)
		}
		byID[l.ID] = l
	}

	for id, l := range byID {
		if l.NextLevelID != "" {
			continue
		}
		l.NextLevelID = Completed
		if derived := incrementSuffix(id); derived != "" {
			if _, ok := byID[derived]; ok {
				l.NextLevelID = derived
			}
		}
		byID[id] = l
	}

	var terminals []string
	inbound := make(map[string]string, len(byID))
	for id, l := range byID {
		if l.IsTerminal() {
			terminals = append(terminals, id)
			continue
		}
		if l.NextLevelID == id {
			return nil, fmt.Errorf("%w: level %q points to itself", ErrInvalidCatalog, id)
		}
		if _, ok := byID[l.NextLevelID]; !ok {
			return nil, fmt.Errorf("%w: level %q points to unknown level %q", ErrInvalidCatalog, id, l.NextLevelID)
		}
		if other, taken := inbound[l.NextLevelID]; taken {
			return nil, fmt.Errorf("%w: levels %q and %q both lead to %q", ErrInvalidCatalog, other, id, l.NextLevelID)
		}
		inbound[l.NextLevelID] = id
	}
	if len(terminals) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one terminal level, found %d", ErrInvalidCatalog, len(terminals))
	}

	var first string
	for id := range byID {
		if _, pointed := inbound[id]; !pointed {
			if first != "" {
				return nil, fmt.Errorf("%w: more than one starting level (%q, %q)", ErrInvalidCatalog, first, id)
			}
			first = id
		}
	}
	if first == "" {
		return nil, fmt.Errorf("%w: levels form a cycle", ErrInvalidCatalog)
	}

	order := make([]string, 0, len(byID))
	for id := first; id != Completed; id = byID[id].NextLevelID {
		order = append(order, id)
		if len(order) > len(byID) {
			return nil, fmt.Errorf("%w: levels form a cycle", ErrInvalidCatalog)
		}
	}
	if len(order) != len(byID) {
		return nil, fmt.Errorf("%w: %d levels are not reachable from %q", ErrInvalidCatalog, len(byID)-len(order), first)
	}

	return &Catalog{byID: byID, order: order}, nil
}

func validateRecord(l Level) error {
	switch {
	case strings.TrimSpace(l.ID) == "":
		return fmt.Errorf("%w: level with empty id", ErrInvalidCatalog)
	case strings.ContainsFunc(l.ID, isSpace):
		return fmt.Errorf("%w: level id %q contains whitespace", ErrInvalidCatalog, l.ID)
	case l.ID == Welcome || l.ID == Completed:
		return fmt.Errorf("%w: level id %q is reserved", ErrInvalidCatalog, l.ID)
	case strings.TrimSpace(l.QuestionText) == "":
		return fmt.Errorf("%w: level %q has no question", ErrInvalidCatalog, l.ID)
	case answer.Normalize(l.CanonicalAnswer) == "":
		return fmt.Errorf("%w: level %q has no usable answer", ErrInvalidCatalog, l.ID)
	}
	return nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '　'
}

// incrementSuffix returns id with its trailing number incremented, keeping
// zero padding, or "" when id has no numeric suffix.
func incrementSuffix(id string) string {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	digits := id[i:]
	if digits == "" {
		return ""
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s%0*d", id[:i], len(digits), n+1)
}

// Lookup returns the level with the given id.
func (c *Catalog) Lookup(id string) (Level, error) {
	l, ok := c.byID[id]
	if !ok {
		return Level{}, fmt.Errorf("%w: %s", ErrLevelNotFound, id)
	}
	return l, nil
}

// Successor returns the id of the level after id, or Completed.
func (c *Catalog) Successor(id string) (string, error) {
	l, err := c.Lookup(id)
	if err != nil {
		return "", err
	}
	return l.NextLevelID, nil
}

// First returns the opening level.
func (c *Catalog) First() Level {
	return c.byID[c.order[0]]
}

// Len returns the number of levels.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Levels returns the levels in play order.
func (c *Catalog) Levels() []Level {
	out := make([]Level, len(c.order))
	for i, id := range c.order {
		out[i] = c.byID[id]
	}
	return out
}
