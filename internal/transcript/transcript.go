package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Speaker identifies a transcript lane.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerSystem    Speaker = "system"
	SpeakerTool      Speaker = "tool"
)

// Finality marks whether a turn may still change.
type Finality string

const (
	FinalityInterim Finality = "interim"
	FinalityFinal   Finality = "final"
)

// Turn is one utterance in the transcript. Text is mutable while the turn
// is interim and frozen once final.
type Turn struct {
	ID          string    `json:"id"`
	Speaker     Speaker   `json:"speaker"`
	Text        string    `json:"text"`
	Finality    Finality  `json:"finality"`
	StartedAt   time.Time `json:"startedAt"`
	FinalizedAt time.Time `json:"finalizedAt,omitempty"`
}

// Sink receives snapshots of transcript turns. Implementations render them;
// they must not hold references expecting later mutation.
type Sink interface {
	TurnStarted(turn Turn)
	TurnUpdated(turn Turn)
	TurnFinalized(turn Turn)
}

func newTurn(speaker Speaker, text string) *Turn {
	return &Turn{
		ID:        uuid.New().String(),
		Speaker:   speaker,
		Text:      text,
		Finality:  FinalityInterim,
		StartedAt: time.Now(),
	}
}
