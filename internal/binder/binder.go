// Package binder maps free-text scene descriptions onto structured sprite
// requests using a name to character-id mapping and fixed lexicons.
//
// Binding never fails: text that matches nothing yields a Binding with no
// characters, setting "generic", time "day", and a Requirement for a
// standing, neutral sprite.
package binder

import (
	"slices"
	"strings"
	"sync"
)

// Default labels used when the text gives no signal.
const (
	DefaultSetting = "generic"
	DefaultTime    = "day"
)

// Binder binds scene text to characters and sprite attributes.
// The mapping is shared by every Bind call on the same Binder; callers that
// need per-request mappings should use one Binder per request.
type Binder struct {
	mu      sync.RWMutex
	mapping []Character
}

// New returns a Binder with an empty character mapping.
func New() *Binder {
	return &Binder{}
}

// SetCharacterMapping replaces the mapping wholesale. Order matters: the
// first entry is treated as the primary character for pronoun references.
func (b *Binder) SetCharacterMapping(mapping []Character) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mapping = slices.Clone(mapping)
}

// CharacterMapping returns a copy of the current mapping.
func (b *Binder) CharacterMapping() []Character {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.mapping)
}

// Bind parses a single scene.
func (b *Binder) Bind(text string) Binding {
	b.mu.RLock()
	mapping := b.mapping
	b.mu.RUnlock()

	lower := strings.ToLower(text)

	binding := Binding{
		Text:       text,
		Characters: extractCharacters(text, lower, mapping),
		Actions:    extractActions(text),
		Emotions:   allMatches(emotionLexicon, lower),
		Objects:    extractObjects(text),
		Setting:    DefaultSetting,
		TimeOfDay:  DefaultTime,
	}
	if binding.Emotions == nil {
		binding.Emotions = []string{}
	}
	if s, ok := firstMatch(settingLexicon, lower); ok {
		binding.Setting = s
	}
	if t, ok := firstMatch(timeLexicon, lower); ok {
		binding.TimeOfDay = t
	}
	if w, ok := firstMatch(weatherLexicon, lower); ok {
		binding.Weather = w
	}
	return binding
}

// ParseStory splits a story into scenes and binds each in document order.
func (b *Binder) ParseStory(text string) []Binding {
	scenes := splitScenes(text)
	out := make([]Binding, 0, len(scenes))
	for _, s := range scenes {
		out = append(out, b.Bind(s))
	}
	return out
}

func extractCharacters(text, lower string, mapping []Character) []Character {
	chars := []Character{}
	for _, c := range mapping {
		if c.Name == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(c.Name)) {
			chars = append(chars, c)
		}
	}

	// Pronouns refer to the first registered character.
	if len(chars) == 0 && len(mapping) > 0 && pronounRe.MatchString(text) {
		chars = append(chars, mapping[0])
	}
	return chars
}

func extractActions(text string) []string {
	actions := []string{}
	seen := make(map[string]bool)
	for _, v := range verbLexicon {
		for _, m := range v.re.FindAllString(text, -1) {
			if seen[m] {
				continue
			}
			seen[m] = true
			actions = append(actions, m)
		}
	}
	return actions
}

func extractObjects(text string) []string {
	objects := []string{}
	for _, o := range objectLexicon {
		if o.re.MatchString(text) {
			objects = append(objects, o.name)
		}
	}
	return objects
}
