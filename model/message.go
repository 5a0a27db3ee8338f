// Package model defines the provider-agnostic conversation types shared by
// every other package: messages, roles and tool call records.
//
// Keeping these types free of any provider SDK import is what lets the agent
// layer swap providers behind one interface without leaking wire formats into
// the controller or storage.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentType identifies what kind of payload a message carries in its
// SystemContent field.
type ContentType string

const (
	ContentTypeText    ContentType = "text"
	ContentTypePNG     ContentType = "png"
	ContentTypeJPEG    ContentType = "jpeg"
	ContentTypeUnknown ContentType = "unknown"
)

// IsImage reports whether the content is a base64-encoded image.
func (ct ContentType) IsImage() bool {
	return ct == ContentTypePNG || ct == ContentTypeJPEG
}

// MIMEType returns the media type for image content ("image/png" etc).
func (ct ContentType) MIMEType() string {
	return fmt.Sprintf("image/%s", string(ct))
}

// RoleKind distinguishes who authored a message.
type RoleKind string

const (
	RoleKindUser      RoleKind = "user"
	RoleKindAssistant RoleKind = "assistant"
	RoleKindApp       RoleKind = "app"
)

// Role describes a participant as shown in the chat history: a display name
// plus a marker for assistant vs user/app authored turns.
type Role struct {
	Name string   `json:"name"`
	Kind RoleKind `json:"kind"`
}

// UserRole is the role attached to messages typed by the user.
func UserRole() Role {
	return Role{Name: "User", Kind: RoleKindUser}
}

// AgentRole returns the assistant role for a given model, displayed as
// "Agent (<model>)".
func AgentRole(model string) Role {
	return Role{Name: fmt.Sprintf("Agent (%s)", model), Kind: RoleKindAssistant}
}

// AppRole is used for application-generated messages such as file uploads.
func AppRole() Role {
	return Role{Name: "App", Kind: RoleKindApp}
}

// Message represents one turn of a conversation. Messages are immutable once
// created and persisted append-only; streaming reassembly at the UI layer
// produces new accumulated Message values rather than mutating stored ones.
//
// DisplayContent is what a human sees; SystemContent is what gets sent to a
// provider (for images this is the base64 blob while DisplayContent holds a
// short human-readable caption).
type Message struct {
	ID             string      `json:"id"`
	ChatID         string      `json:"chat_id"`
	CreatedAt      time.Time   `json:"created_at"`
	DisplayContent string      `json:"display_content"`
	SystemContent  string      `json:"system_content"`
	ContentType    ContentType `json:"content_type"`
	Role           Role        `json:"role"`
}

// NewUserMessage creates a text message authored by the user.
func NewUserMessage(chatID, text string) Message {
	return Message{
		ID:             uuid.New().String(),
		ChatID:         chatID,
		CreatedAt:      time.Now(),
		DisplayContent: text,
		SystemContent:  text,
		ContentType:    ContentTypeText,
		Role:           UserRole(),
	}
}

// NewAgentMessage creates a text message authored by an agent.
func NewAgentMessage(chatID, text string, role Role) Message {
	return Message{
		ID:             uuid.New().String(),
		ChatID:         chatID,
		CreatedAt:      time.Now(),
		DisplayContent: text,
		SystemContent:  text,
		ContentType:    ContentTypeText,
		Role:           role,
	}
}

// NewFileMessage creates an app-authored message carrying ingested file
// content. For images systemContent is the base64 payload.
func NewFileMessage(chatID, displayContent, systemContent string, ct ContentType) Message {
	return Message{
		ID:             uuid.New().String(),
		ChatID:         chatID,
		CreatedAt:      time.Now(),
		DisplayContent: displayContent,
		SystemContent:  systemContent,
		ContentType:    ct,
		Role:           AppRole(),
	}
}

// IsAssistantMessage reports whether the message was produced by an agent.
func (m Message) IsAssistantMessage() bool {
	return m.Role.Kind == RoleKindAssistant
}

// IsUserMessage reports whether the message was typed by the user.
func (m Message) IsUserMessage() bool {
	return m.Role.Kind == RoleKindUser
}

// IsBlank reports whether the display content is empty or whitespace-only.
// Blank user messages never trigger an agent turn.
func (m Message) IsBlank() bool {
	return strings.TrimSpace(m.DisplayContent) == ""
}
