package track

import (
	"errors"
	"time"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/azel"
)

var (
	ErrUnknownTarget = errors.New("track: unknown target")
	ErrInvalidName   = errors.New("track: invalid target name")
)

// Target is a named position the antenna can be pointed at.
type Target struct {
	Name      string
	Position  azel.GeodeticPosition
	UpdatedAt time.Time
}

// Pointing is the line of sight from the site to a target at one instant.
type Pointing struct {
	Target string
	Time   time.Time
	azel.LookAngles
}
