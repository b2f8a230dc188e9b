package models

import "time"

type GameStatus string

const (
	GameStatusOngoing  GameStatus = "ongoing"
	GameStatusStarted  GameStatus = "started"
	GameStatusFinished GameStatus = "finished"
)

func (s GameStatus) Valid() bool {
	switch s {
	case GameStatusOngoing, GameStatusStarted, GameStatusFinished:
		return true
	}
	return false
}

// CharacterSnapshot holds the catalog display fields copied when a character
// enters a session. It is never re-synced: later catalog edits do not show up
// in running sessions.
type CharacterSnapshot struct {
	CharacterName string         `json:"characterName"`
	Class         CharacterClass `json:"class"`
	Avatar        string         `json:"avatar"`
	TakenAt       time.Time      `json:"snapshotAt"`
}

// SameIdentity reports whether both snapshots describe the same character.
func (s CharacterSnapshot) SameIdentity(o CharacterSnapshot) bool {
	return s.CharacterName == o.CharacterName && s.Class == o.Class && s.Avatar == o.Avatar
}

type Participant struct {
	UserID           string `json:"userId"`
	CharacterStateID string `json:"characterState"`
	CharacterSnapshot
}

type GameSession struct {
	ID                     string
	GameStatus             GameStatus
	CurrentTurnCharacterID string
	RoomCode               *string
	Users                  []Participant
	Spectators             []string
	Version                int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (s GameSession) Finished() bool {
	return s.GameStatus == GameStatusFinished
}

// Participant returns the first participant record owned by userID.
func (s GameSession) Participant(userID string) (Participant, bool) {
	for _, p := range s.Users {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (s GameSession) HasIdentity(snap CharacterSnapshot) bool {
	for _, p := range s.Users {
		if p.CharacterSnapshot.SameIdentity(snap) {
			return true
		}
	}
	return false
}

func (s GameSession) HasSpectator(userID string) bool {
	for _, id := range s.Spectators {
		if id == userID {
			return true
		}
	}
	return false
}

func (s GameSession) ReferencesState(stateID string) bool {
	for _, p := range s.Users {
		if p.CharacterStateID == stateID {
			return true
		}
	}
	return false
}

// StateIDs lists the CharacterState ids referenced by participants.
func (s GameSession) StateIDs() []string {
	ids := make([]string, 0, len(s.Users))
	for _, p := range s.Users {
		if p.CharacterStateID != "" {
			ids = append(ids, p.CharacterStateID)
		}
	}
	return ids
}
