// Package game defines the core domain types for the orchestrator.
// It has zero external dependencies — everything here is pure Go.
package game

import "time"

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionPaused   SessionStatus = "paused"
	SessionEnded    SessionStatus = "ended"
	SessionArchived SessionStatus = "archived"
)

type ScanMode string

const (
	ModeBlackMarket ScanMode = "blackmarket"
	ModeDetective   ScanMode = "detective"
)

type TransactionStatus string

const (
	TransactionAccepted  TransactionStatus = "accepted"
	TransactionDuplicate TransactionStatus = "duplicate"
	TransactionRejected  TransactionStatus = "rejected"
)

// Transaction records one scan attempt and its adjudicated outcome.
// Append-only: once classified it is never mutated.
type Transaction struct {
	ID                    string            `json:"id"`
	TokenID               string            `json:"tokenId"`
	TeamID                string            `json:"teamId"`
	StationID             string            `json:"stationId"`
	Mode                  ScanMode          `json:"mode"`
	Status                TransactionStatus `json:"status"`
	OriginalTransactionID string            `json:"originalTransactionId,omitempty"`
	Points                int               `json:"points"`
	Summary               string            `json:"summary,omitempty"`
	Reason                string            `json:"reason,omitempty"`
	Timestamp             time.Time         `json:"timestamp"`
}

// TeamScore is created lazily on a team's first accepted transaction and
// mutated only by the transaction processor.
type TeamScore struct {
	TeamID          string    `json:"teamId"`
	BaseScore       int       `json:"baseScore"`
	BonusPoints     int       `json:"bonusPoints"`
	Score           int       `json:"score"`
	TokensScanned   int       `json:"tokensScanned"`
	CompletedGroups []string  `json:"completedGroups"`
	LastScanTime    time.Time `json:"lastScanTime"`
}

// HasCompletedGroup reports whether the group bonus has already been paid out.
func (t *TeamScore) HasCompletedGroup(name string) bool {
	for _, g := range t.CompletedGroups {
		if g == name {
			return true
		}
	}
	return false
}

// Session is one complete play-through of the event. Exactly one session is
// active at a time; archived sessions are immutable history.
type Session struct {
	ID           string                `json:"id"`
	Name         string                `json:"name,omitempty"`
	StartTime    time.Time             `json:"startTime"`
	EndTime      *time.Time            `json:"endTime,omitempty"`
	Status       SessionStatus         `json:"status"`
	Transactions []Transaction         `json:"transactions"`
	Teams        map[string]*TeamScore `json:"teams"`
	Metadata     map[string]string     `json:"metadata,omitempty"`
}

type DeviceType string

const (
	DeviceGM      DeviceType = "gm"
	DeviceScanner DeviceType = "scanner"
)

// Device is a station known to the orchestrator. Created on first identify,
// updated in place on re-identify with the same station ID.
type Device struct {
	StationID string     `json:"stationId"`
	Type      DeviceType `json:"type"`
	Version   string     `json:"version"`
	Connected bool       `json:"connected"`
	SessionID string     `json:"sessionId"`
	LastSeen  time.Time  `json:"lastSeen"`
}

// GameState is the lightweight scores-plus-video snapshot persisted under the
// game-state key and pushed to stations between full session syncs.
type GameState struct {
	SessionID   string                `json:"sessionId,omitempty"`
	Scores      map[string]*TeamScore `json:"scores"`
	VideoStatus VideoStatus           `json:"videoStatus"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

type VideoStatus string

const (
	VideoIdle    VideoStatus = "idle"
	VideoPlaying VideoStatus = "playing"
)

// Token is a catalog entry, read-only to the core. Group encodes a name and
// a completion multiplier, e.g. "Server Logs (x2)".
type Token struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	ValueRating int    `json:"valueRating"`
	MemoryType  string `json:"memoryType"`
	Group       string `json:"group,omitempty"`
	Video       string `json:"video,omitempty"`
	Summary     string `json:"summary,omitempty"`
}
