package mission

import "errors"

// Mission errors
var (
	ErrInvalidConfig     = errors.New("invalid scenario configuration")
	ErrAlreadyStarted    = errors.New("scenario already started")
	ErrScenarioStopped   = errors.New("scenario is stopped")
	ErrPhaseRegression   = errors.New("phase transition would move backwards")
	ErrPhaseNotInLineage = errors.New("phase does not belong to the agent lineage")
)
