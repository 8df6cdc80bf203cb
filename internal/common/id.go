package common

import (
	"github.com/google/uuid"
)

// NewID generates an opaque 128-bit identifier
func NewID() string {
	return uuid.New().String()
}

// NewResultID generates a unique crawl result ID with the "res_" prefix
func NewResultID() string {
	return "res_" + uuid.New().String()
}
