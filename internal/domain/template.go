package domain

import (
	"time"
)

// Channel is a customer communication channel.
type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelIVR      Channel = "IVR"
)

// Channels is the allowed channel set for rule bindings.
var Channels = []Channel{ChannelSMS, ChannelEmail, ChannelWhatsApp, ChannelIVR}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// MessageTemplate is one entry of the per-channel template catalog.
type MessageTemplate struct {
	ID           string    `json:"id"`
	Channel      Channel   `json:"channel"`
	TemplateName string    `json:"templateName"`
	Language     string    `json:"language"`
	Body         string    `json:"body,omitempty"`
	Variables    []string  `json:"variables,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
