package net

import "InkBoard/internal/geom"

// Frame types exchanged on the pen socket.
const (
	TypeHello   = "hello"
	TypeWelcome = "welcome"
	TypeSamples = "samples"
	TypeError   = "error"
)

// Frame is one JSON message on the pen socket. A samples frame carries one
// batch of view-space points for Page.
type Frame struct {
	Type   string       `json:"type"`
	Page   string       `json:"page,omitempty"`
	Points []geom.Point `json:"points,omitempty"`
	Width  int          `json:"width,omitempty"`
	Height int          `json:"height,omitempty"`
	Pages  []string     `json:"pages,omitempty"`
	Error  string       `json:"error,omitempty"`
}
