package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

type User struct {
	ID       int64
	Username string
	JoinedAt time.Time
}

type Giveaway struct {
	ID           int64
	StartAt      time.Time
	EndAt        time.Time
	Description  string
	NumWinners   int
	Active       bool
	// Announcement content; MediaFileID/MediaType may be empty for text-only.
	AnnounceText string
	MediaFileID  string
	MediaType    string
	CreatedByID  int64
	CreatedAt    time.Time
	EndedAt      time.Time // zero until finished
}

type Participant struct {
	GiveawayID int64
	UserID     int64
	Username   string
	JoinedAt   time.Time
}

type Winner struct {
	GiveawayID int64
	UserID     int64
	Username   string
	Position   int
	Notified   bool
}
