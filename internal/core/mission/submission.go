package mission

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Submission is the create-mission payload handed to whatever backend accepts
// missions. The simulation never sends it.
type Submission struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"createdAt"`
	Mission     string            `json:"mission"`
	Fingerprint string            `json:"fingerprint"`
	Scenario    Config            `json:"scenario"`
	Devices     map[string]string `json:"devices"`
}

// NewSubmission packages a validated scenario for the catalog mission type
// with the device chosen for each role (role name -> device name).
func NewSubmission(missionType string, cfg Config, devices map[string]string) (Submission, error) {
	if missionType == "" {
		return Submission{}, fmt.Errorf("%w: empty mission type", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return Submission{}, err
	}
	chosen := make(map[string]string, len(devices))
	for role, device := range devices {
		if role == "" || device == "" {
			return Submission{}, fmt.Errorf("%w: empty role or device in selection", ErrInvalidConfig)
		}
		chosen[role] = device
	}

	return Submission{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Mission:     missionType,
		Fingerprint: cfg.Fingerprint(),
		Scenario:    cfg,
		Devices:     chosen,
	}, nil
}
