package subscription

import (
	"crypto/sha256"
	"fmt"
)

// Checksum returns the hex SHA-256 of list content
func Checksum(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}
