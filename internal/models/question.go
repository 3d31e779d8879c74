package models

// Question is a single multiple-choice item. It is supplied by an external generator and never
// modified once embedded in a match.
type Question struct {
	ID           string   `json:"id" yaml:"id"`
	Text         string   `json:"text" yaml:"text"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctIndex" yaml:"correctIndex"`
	Topic        string   `json:"topic" yaml:"topic"`
	Difficulty   string   `json:"difficulty" yaml:"difficulty"`
}

// IsCorrect grades an option index against the answer key.
func (q Question) IsCorrect(optionIndex int) bool {
	return optionIndex == q.CorrectIndex
}

// Valid reports whether the question can be played: it needs options and an in-range key.
func (q Question) Valid() bool {
	return len(q.Options) >= 2 && q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options)
}
