// Package sync implements LAN story transfer between devices: a token-
// authenticated HTTP endpoint serving story exports, plus UDP broadcast
// discovery so devices can find each other without typing addresses.
package sync

import (
	"time"

	"fabula/internal/entry"
	"fabula/internal/store"
)

const (
	// DefaultPort is the fixed sync HTTP port.
	DefaultPort = 55555
	// DefaultDiscoveryPort is the fixed UDP discovery broadcast port.
	DefaultDiscoveryPort = 55556
	// AppIdentifier marks discovery broadcasts as ours.
	AppIdentifier = "fabula"
)

// Request is the single sync request envelope.
type Request struct {
	Token  string `json:"token"`
	Action Action `json:"action"`
}

// Action selects the operation; StoryID and StoryData accompany pulls and
// pushes respectively.
type Action struct {
	Type      string `json:"type"` // "listStories", "pullStory", "pushStory"
	StoryID   string `json:"storyId,omitempty"`
	StoryData string `json:"storyData,omitempty"`
}

type Response struct {
	Type    string         `json:"type"` // "storiesList", "storyData", "success", "error"
	Stories []StoryPreview `json:"stories,omitempty"`
	Data    string         `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

type StoryPreview struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Genre      string `json:"genre,omitempty"`
	UpdatedAt  int64  `json:"updatedAt"`
	EntryCount int    `json:"entryCount"`
}

// Event is surfaced to the UI so the serving side can see activity.
type Event struct {
	Type    string `json:"eventType"` // "connected", "pulled", "pushed"
	Message string `json:"message"`
}

// DiscoveryBroadcast is the JSON datagram announced over UDP.
type DiscoveryBroadcast struct {
	App        string `json:"app"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	Token      string `json:"token"`
	Version    string `json:"version"`
	DeviceName string `json:"deviceName"`
}

// Export is the portable story document exchanged by pull and push.
type Export struct {
	Story   ExportStory   `json:"story"`
	Entries []entry.Entry `json:"entries"`
}

type ExportStory struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Genre     string `json:"genre,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func exportStory(s store.Story) ExportStory {
	return ExportStory{
		ID:        s.ID,
		Title:     s.Title,
		Genre:     s.Genre,
		CreatedAt: s.CreatedAt.Unix(),
		UpdatedAt: s.UpdatedAt.Unix(),
	}
}

func (es ExportStory) story() store.Story {
	return store.Story{
		ID:        es.ID,
		Title:     es.Title,
		Genre:     es.Genre,
		CreatedAt: time.Unix(es.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(es.UpdatedAt, 0).UTC(),
	}
}
