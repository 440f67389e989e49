package binder

import (
	"strings"

	"github.com/rcliao/sprite-memory/internal/model"
)

// Character is one entry of the name to character-id mapping.
type Character struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Binding is the structured reading of one scene's narrative text.
type Binding struct {
	Text       string      `json:"text"`
	Characters []Character `json:"characters"`
	Actions    []string    `json:"actions"`
	Emotions   []string    `json:"emotions"`
	Objects    []string    `json:"objects"`
	Setting    string      `json:"setting"`
	TimeOfDay  string      `json:"time_of_day"`
	Weather    string      `json:"weather,omitempty"` // empty when the text names no weather
}

// Background describes the backdrop a scene needs.
type Background struct {
	Setting string `json:"setting"`
	Time    string `json:"time"`
	Weather string `json:"weather,omitempty"`
}

// Requirement is the canonical sprite request derived from a Binding.
type Requirement struct {
	CharacterID          string      `json:"character_id,omitempty"`
	Pose                 string      `json:"pose"`
	Emotion              string      `json:"emotion"`
	AdditionalCharacters []Character `json:"additional_characters"`
	Objects              []string    `json:"objects_needed"`
	Background           Background  `json:"background"`
}

// PrimaryCharacter returns the first character referenced by the scene.
func (b Binding) PrimaryCharacter() (Character, bool) {
	if len(b.Characters) == 0 {
		return Character{}, false
	}
	return b.Characters[0], true
}

// Requirement derives the sprite request for the scene.
func (b Binding) Requirement() Requirement {
	req := Requirement{
		Pose:                 b.pose(),
		Emotion:              b.emotion(),
		AdditionalCharacters: []Character{},
		Objects:              b.Objects,
		Background: Background{
			Setting: b.Setting,
			Time:    b.TimeOfDay,
			Weather: b.Weather,
		},
	}
	if c, ok := b.PrimaryCharacter(); ok {
		req.CharacterID = c.ID
		req.AdditionalCharacters = append(req.AdditionalCharacters, b.Characters[1:]...)
	}
	if req.Objects == nil {
		req.Objects = []string{}
	}
	return req
}

// pose returns the pose of the first recognised action that carries one.
func (b Binding) pose() string {
	for _, a := range b.Actions {
		if v, ok := verbByForm[strings.ToLower(a)]; ok && v.pose != "" {
			return v.pose
		}
	}
	return model.DefaultPose
}

func (b Binding) emotion() string {
	if len(b.Emotions) > 0 {
		return b.Emotions[0]
	}
	return model.DefaultEmotion
}
