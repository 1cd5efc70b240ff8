package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateFileName returns a collision-free file name such as "image-<uuid>.jpg"
func GenerateFileName(prefix, ext string) string {
	return prefix + "-" + uuid.New().String() + ext
}
