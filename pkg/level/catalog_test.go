package level

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lvl(id, next string) Level {
	return Level{
		ID:              id,
		QuestionText:    "question " + id,
		CanonicalAnswer: "answer " + id,
		TransitionText:  "transition " + id,
		NextLevelID:     next,
	}
}

func TestNewCatalog_Valid(t *testing.T) {
	// Deliberately out of order; the chain defines play order.
	cat, err := NewCatalog([]Level{
		lvl("L03", Completed),
		lvl("L01", "L02"),
		lvl("L02", "L03"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, cat.Len())
	assert.Equal(t, "L01", cat.First().ID)

	var ids []string
	for _, l := range cat.Levels() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"L01", "L02", "L03"}, ids)

	next, err := cat.Successor("L01")
	require.NoError(t, err)
	assert.Equal(t, "L02", next)

	next, err = cat.Successor("L03")
	require.NoError(t, err)
	assert.Equal(t, Completed, next)
}

func TestNewCatalog_DerivedSuccessors(t *testing.T) {
	cat, err := NewCatalog([]Level{
		lvl("L09", ""),
		lvl("L10", ""),
		lvl("L08", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, "L08", cat.First().ID)
	next, err := cat.Successor("L09")
	require.NoError(t, err)
	assert.Equal(t, "L10", next)

	last, err := cat.Lookup("L10")
	require.NoError(t, err)
	assert.True(t, last.IsTerminal())
}

func TestNewCatalog_ExplicitOverridesDerived(t *testing.T) {
	cat, err := NewCatalog([]Level{
		lvl("L01", "L03"),
		lvl("L03", "L02"),
		lvl("L02", Completed),
	})
	require.NoError(t, err)

	var ids []string
	for _, l := range cat.Levels() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"L01", "L03", "L02"}, ids)
}

func TestNewCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		levels []Level
	}{
		{"empty", nil},
		{"no terminal (cycle)", []Level{lvl("L01", "L02"), lvl("L02", "L01")}},
		{"two terminals", []Level{lvl("L01", Completed), lvl("L02", Completed)}},
		{"unknown successor", []Level{lvl("L01", "L05"), lvl("L02", Completed)}},
		{"self loop", []Level{lvl("L01", "L01"), lvl("L02", Completed)}},
		{"branch", []Level{lvl("L01", "L03"), lvl("L02", "L03"), lvl("L03", Completed)}},
		{"detached cycle", []Level{lvl("A", "B"), lvl("B", Completed), lvl("C", "D"), lvl("D", "C")}},
		{"duplicate id", []Level{lvl("L01", Completed), lvl("L01", Completed)}},
		{"reserved id", []Level{lvl(Welcome, Completed)}},
		{"blank id", []Level{lvl(" ", Completed)}},
		{"id with space", []Level{lvl("L 1", Completed)}},
		{"missing question", []Level{{ID: "L01", CanonicalAnswer: "x", NextLevelID: Completed}}},
		{"punctuation-only answer", []Level{{ID: "L01", QuestionText: "q", CanonicalAnswer: "。", NextLevelID: Completed}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.levels)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCatalog), "got %v", err)
		})
	}
}

func TestCatalog_LookupMissing(t *testing.T) {
	cat, err := NewCatalog([]Level{lvl("L01", Completed)})
	require.NoError(t, err)

	_, err = cat.Lookup("L99")
	assert.ErrorIs(t, err, ErrLevelNotFound)

	_, err = cat.Successor("L99")
	assert.ErrorIs(t, err, ErrLevelNotFound)
}

func TestIncrementSuffix(t *testing.T) {
	assert.Equal(t, "L02", incrementSuffix("L01"))
	assert.Equal(t, "L10", incrementSuffix("L09"))
	assert.Equal(t, "L100", incrementSuffix("L99"))
	assert.Equal(t, "stage8", incrementSuffix("stage7"))
	assert.Equal(t, "", incrementSuffix("final"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "levels.yaml")
	content := `title: Test Hunt
commands:
  arrival: ["到", "arrived"]
messages:
  welcome: hi there
levels:
  - id: L01
    question: What station?
    answer: Maruyama
    transition: Go to the temple.
    next: L02
  - id: L02
    intro: You made it.
    question: Emoji riddle
    question_image: https://example.com/q2.jpg
    answer: X
    transition: Done!
    next: COMPLETED
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Test Hunt", f.Title)
	assert.Equal(t, []string{"到", "arrived"}, f.Commands["arrival"])
	assert.Equal(t, "hi there", f.Messages["welcome"])
	require.Len(t, f.Levels, 2)
	assert.Equal(t, "https://example.com/q2.jpg", f.Levels[1].QuestionImage)

	cat, err := f.Catalog()
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("levels:\n  - id: L01\n    questoin: typo\n"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}
