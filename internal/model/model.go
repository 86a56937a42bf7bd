// Package model holds the domain types shared by the pipeline.
package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an article in the review pipeline.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDiscarded Status = "discarded"
	StatusPosted    Status = "posted"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusDiscarded, StatusPosted:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Visibility is the Mastodon visibility an approved article is posted with.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
)

// ParseVisibility validates a raw visibility string.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate, VisibilityDirect:
		return Visibility(s), nil
	}
	return "", fmt.Errorf("unknown visibility %q", s)
}

// Article is a feed entry tracked through review and publication.
// GUID is the feed-assigned identifier and the sole deduplication key.
type Article struct {
	ID          int64
	GUID        string
	Title       string
	Link        string
	PublishedAt time.Time
	Description string
	Author      string
	// Teaser is empty until a reviewer approves one (or resummarizes).
	Teaser string
	// Length of the extracted full text, 0 when the feed carried none.
	Length     int
	Hashtags   []string
	Status     Status
	Visibility Visibility
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TeaserExample is an append-only record of a reviewer-approved teaser,
// used as few-shot context for later generations.
type TeaserExample struct {
	ID          int64
	Description string
	Teaser      string
	CreatedAt   time.Time
}

// Tag is a trending hashtag as reported by the social service.
type Tag struct {
	Name    string   `json:"name"`
	URL     string   `json:"url,omitempty"`
	History []TagUse `json:"history,omitempty"`
}

// TagUse is one day of usage history for a trending tag. The Mastodon API
// returns these counters as strings.
type TagUse struct {
	Day      string `json:"day"`
	Uses     string `json:"uses"`
	Accounts string `json:"accounts"`
}
