package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/pkg/answer"
	"github.com/jwebster45206/hunt-engine/pkg/level"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <levels.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &HuntValidator{}

	if err := validator.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	for _, w := range validator.warnings {
		fmt.Println("warning:" + strings.TrimPrefix(w, "  -"))
	}
	fmt.Println("Levels file is valid!")
}

// HuntValidator collects problems a strict decode and catalog build do
// not catch on their own.
type HuntValidator struct {
	errors   []string
	warnings []string
}

func (v *HuntValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("levels file must have a .yaml extension: %s", filepath.Base(filename))
	}

	f, err := level.LoadFile(filename)
	if err != nil {
		return err
	}

	v.errors = nil
	v.warnings = nil

	cat, err := f.Catalog()
	if err != nil {
		return err
	}

	cp, err := engine.DefaultCopy().WithOverrides(f.Messages, f.Commands)
	if err != nil {
		return err
	}

	v.validateLevels(f.Levels, cat)
	v.validateCommands(cp, cat)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	fmt.Printf("%d levels, %s -> ... -> %s\n", cat.Len(), cat.First().ID, cat.Levels()[cat.Len()-1].ID)
	return nil
}

func (v *HuntValidator) validateLevels(levels []level.Level, cat *level.Catalog) {
	for _, l := range levels {
		for field, url := range map[string]string{"question_image": l.QuestionImage, "transition_image": l.TransitionImage} {
			if url != "" && !strings.HasPrefix(url, "https://") {
				// LINE only fetches images over HTTPS.
				v.addError(fmt.Sprintf("level %s %s must be an https URL: %s", l.ID, field, url))
			}
		}
		if strings.TrimSpace(l.TransitionText) == "" {
			v.addWarning(fmt.Sprintf("level %s has no transition text", l.ID))
		}
		if l.NextLevelID == "" {
			resolved, _ := cat.Successor(l.ID)
			v.addWarning(fmt.Sprintf("level %s has no next; derived %s", l.ID, resolved))
		}
	}
}

// validateCommands rejects answers that the engine would read as a
// command instead.
func (v *HuntValidator) validateCommands(cp *engine.Copy, cat *level.Catalog) {
	for _, l := range cat.Levels() {
		if answer.MatchAny(l.CanonicalAnswer, cp.ResetTokens) {
			v.addError(fmt.Sprintf("level %s answer %q is a reset command", l.ID, l.CanonicalAnswer))
		}
	}
}

func (v *HuntValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

func (v *HuntValidator) addWarning(msg string) {
	v.warnings = append(v.warnings, "  - "+msg)
}
