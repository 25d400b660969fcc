package models

import (
	"strings"
	"time"
)

// Favorite is one "someone favorited my art" notification
type Favorite struct {
	RecipientName       string `json:"recipient_name"`
	RecipientProfileURL string `json:"recipient_profile_url"`
	ArtworkTitle        string `json:"artwork_title"`
	ArtworkURL          string `json:"artwork_url"`
}

// PendingRecipient aggregates the favorites one user left within a batch
type PendingRecipient struct {
	Name          string
	FavoriteCount int
}

// Group is a named set of users sharing a dedicated pool of messages
type Group struct {
	Name     string   `json:"name" yaml:"name" validate:"required"`
	Users    []string `json:"users" yaml:"users" validate:"required,min=1,dive,required"`
	Messages []string `json:"messages" yaml:"messages" validate:"required,min=1,dive,required"`
}

// Contains reports whether username is a member of the group, ignoring case
func (g Group) Contains(username string) bool {
	for _, u := range g.Users {
		if strings.EqualFold(u, username) {
			return true
		}
	}
	return false
}

// RunProgress is the dispatch engine's view of how far a run has come
type RunProgress struct {
	Processed     int  `json:"processed"`
	Total         int  `json:"total"`
	StopRequested bool `json:"stop_requested"`
}

// NoGroup is recorded in place of a group name when the default pool was used
const NoGroup = "None"

// ShoutRecord is an audit entry for a verified shout
type ShoutRecord struct {
	RunID      string
	Recipient  string
	Group      string
	Message    string
	ProfileURL string
	Timestamp  time.Time
}

// FavoriteRecord is an audit entry for a favorite about to be cleared
type FavoriteRecord struct {
	RunID               string
	RecipientName       string
	RecipientProfileURL string
	ArtworkTitle        string
	ArtworkURL          string
	Timestamp           time.Time
}

// NewFavoriteRecord stamps a favorite for the audit log
func NewFavoriteRecord(runID string, f Favorite, at time.Time) FavoriteRecord {
	return FavoriteRecord{
		RunID:               runID,
		RecipientName:       f.RecipientName,
		RecipientProfileURL: f.RecipientProfileURL,
		ArtworkTitle:        f.ArtworkTitle,
		ArtworkURL:          f.ArtworkURL,
		Timestamp:           at,
	}
}
