package uuid

import (
	google_uuid "github.com/google/uuid"
)

// TempName returns prefix followed by a random UUID. It is
// used to give temporary snapshot stores unique file names.
func TempName(prefix string) string {
	return prefix + "-" + google_uuid.New().String()
}
