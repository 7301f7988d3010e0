package multiplayer

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// ProtocolVersion is sent with every envelope. Peers with a different major
// version are ignored.
const ProtocolVersion = "v1.0.0"

var ErrIncompatibleVersion = errors.New("incompatible protocol version")

// Compatible reports whether a peer speaking version can be understood.
// Frames without a version are accepted.
func Compatible(version string) bool {
	if version == "" {
		return true
	}
	if !semver.IsValid(version) {
		return false
	}
	return semver.Major(version) == semver.Major(ProtocolVersion)
}

func CheckVersion(version string) error {
	if !Compatible(version) {
		return fmt.Errorf("%w: got %s, want %s", ErrIncompatibleVersion,
			version, semver.Major(ProtocolVersion))
	}
	return nil
}
