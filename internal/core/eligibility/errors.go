package eligibility

import "errors"

// Eligibility errors
var (
	ErrInvalidCatalog = errors.New("invalid mission catalog")
	ErrUnknownMission = errors.New("unknown mission")
	ErrUnknownRole    = errors.New("role is not part of the mission")
)
