package models

import (
	"time"
)

const (
	// MaxTextLength is counted in UTF-16 code units of the trimmed text.
	MaxTextLength = 500
	// MinAnalysisLength is the shortest trimmed text sent for sentiment analysis.
	MinAnalysisLength = 10
	MaxAttachments    = 10
)

type Attachment struct {
	URL      string `json:"url" validate:"required"`
	Name     string `json:"name" validate:"required"`
	MimeType string `json:"mimeType" validate:"required"`
}

// Sentiment is either fully present on a note or absent.
type Sentiment struct {
	Score     float64 `json:"score"`
	Magnitude float64 `json:"magnitude"`
}

type Note struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"ownerId"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
	IsFavourite bool         `json:"isFavourite"`
	Sentiment   *Sentiment   `json:"sentiment,omitempty"`
	Version     int64        `json:"version"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   *time.Time   `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy so stores never share slices or pointers with callers.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	if n.Attachments != nil {
		c.Attachments = make([]Attachment, len(n.Attachments))
		copy(c.Attachments, n.Attachments)
	}
	if n.Sentiment != nil {
		s := *n.Sentiment
		c.Sentiment = &s
	}
	if n.UpdatedAt != nil {
		t := *n.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

func (n *Note) HasSentiment() bool {
	return n.Sentiment != nil
}
