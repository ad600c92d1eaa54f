// Package ai abstracts the language model behind a small generation
// interface so the bot logic stays provider agnostic.
package ai

import "context"

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one prior exchange carried into the model context.
type Turn struct {
	Role string
	Text string
}

// ImagePart attaches inline image bytes to a request.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// Request is a single inference call: optional system instruction,
// prior turns oldest first, the new user text, and any images.
type Request struct {
	System   string
	History  []Turn
	UserText string
	Images   []ImagePart
}

// Generator produces a model reply for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
