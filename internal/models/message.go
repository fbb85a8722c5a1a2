package models

import (
	"time"
)

// Message is a single channel post as it is fetched from the provider.
// It is never mutated after fetch, only serialized.
type Message struct {
	ID       int       // message id (unique within channel)
	Text     string    // message text content
	Date     time.Time // message creation timestamp
	Views    int       // view count
	Forwards int       // forward count
	Media    *Media    // attached media, nil when the post has none
}

// MediaKind describes the type of attached media.
type MediaKind string

// MediaKind constants define the media types the scraper distinguishes.
const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
	MediaOther    MediaKind = "other"
)

// Media is an opaque reference to attached media.
// Ref carries the provider specific location needed to download it.
type Media struct {
	Kind MediaKind
	Ref  any
}

// HasPhoto reports whether the message carries a downloadable photo.
func (m Message) HasPhoto() bool {
	return m.Media != nil && m.Media.Kind == MediaPhoto
}

// MessageRecord is the flat JSON object stored in the raw message partitions
// and consumed by the loader.
type MessageRecord struct {
	MessageID    int    `json:"message_id"`
	ChannelName  string `json:"channel_name"`
	ChannelTitle string `json:"channel_title"`
	MessageDate  string `json:"message_date"`
	MessageText  string `json:"message_text"`
	HasMedia     bool   `json:"has_media"`
	ImagePath    string `json:"image_path"`
	Views        int    `json:"views"`
	Forwards     int    `json:"forwards"`
}

// NewMessageRecord builds the storage record for a message.
// imagePath is empty when no image was saved.
func NewMessageRecord(ch Channel, msg Message, imagePath string) MessageRecord {
	return MessageRecord{
		MessageID:    msg.ID,
		ChannelName:  ch.Name(),
		ChannelTitle: ch.Title,
		MessageDate:  msg.Date.UTC().Format(time.RFC3339),
		MessageText:  msg.Text,
		HasMedia:     msg.Media != nil,
		ImagePath:    imagePath,
		Views:        msg.Views,
		Forwards:     msg.Forwards,
	}
}
