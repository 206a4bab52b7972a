package types

import "fmt"

// NoSuchCode is returned when a checksum is not known to the code store.
type NoSuchCode struct {
	Checksum Checksum
}

func (e NoSuchCode) Error() string {
	return fmt.Sprintf("no such code: %s", e.Checksum)
}

// PinnedCode is returned when removing code that is still pinned.
type PinnedCode struct {
	Checksum Checksum
}

func (e PinnedCode) Error() string {
	return fmt.Sprintf("code %s is pinned and cannot be removed", e.Checksum)
}
