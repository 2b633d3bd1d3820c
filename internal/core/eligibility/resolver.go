package eligibility

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/iancoleman/orderedmap"
)

// Device is one trusted device as reported by the device registry.
type Device struct {
	Name         string   `json:"device_name"`
	Type         string   `json:"device_type"`
	AllowedTasks []string `json:"allowedTasks"`
}

// Candidates lists, per role in catalog order, the names of the devices whose
// type matches the role. Values are []string.
func (m Mission) Candidates(devices []Device) *orderedmap.OrderedMap {
	out := orderedmap.New()
	for _, req := range m.Requirements {
		names := []string{}
		for _, d := range devices {
			if d.Type == req.DeviceType {
				names = append(names, d.Name)
			}
		}
		out.Set(req.Role, names)
	}
	return out
}

// DefaultSelections picks the first candidate of every role that has one.
func DefaultSelections(candidates *orderedmap.OrderedMap) map[string]string {
	selections := make(map[string]string)
	for _, role := range candidates.Keys() {
		v, _ := candidates.Get(role)
		if names, ok := v.([]string); ok && len(names) > 0 {
			selections[role] = names[0]
		}
	}
	return selections
}

// Granted maps device name to its allowed tasks for every device of a type
// the mission uses.
func (m Mission) Granted(devices []Device) map[string][]string {
	granted := make(map[string][]string)
	for _, d := range devices {
		for _, req := range m.Requirements {
			if req.DeviceType == d.Type {
				granted[d.Name] = d.AllowedTasks
				break
			}
		}
	}
	return granted
}

// Slot is the resolution of one role.
type Slot struct {
	Role     string
	Device   string
	Required []string
	Granted  []string
	Missing  []string
}

// Report is the outcome of Resolve.
type Report struct {
	Mission    string
	Candidates *orderedmap.OrderedMap
	Slots      []Slot
	// Incomplete is set when some role has no device selected.
	Incomplete bool
	// Insufficient is set when a selected device lacks a required task.
	Insufficient bool
}

// Ready reports whether the mission may be created with this selection.
func (r Report) Ready() bool {
	return !r.Incomplete && !r.Insufficient
}

// Slot returns the resolution for role.
func (r Report) Slot(role string) (Slot, bool) {
	for _, s := range r.Slots {
		if s.Role == role {
			return s, true
		}
	}
	return Slot{}, false
}

// Resolve checks the selected device of every role against the tasks the role
// requires. selections maps role to device name, granted maps device name to
// its allowed tasks; devices missing from granted hold no tasks.
func (m Mission) Resolve(selections map[string]string, granted map[string][]string) (Report, error) {
	for role := range selections {
		if _, ok := m.Requirement(role); !ok {
			return Report{}, fmt.Errorf("%w: %q in %q", ErrUnknownRole, role, m.Name)
		}
	}

	report := Report{Mission: m.Name}
	for _, req := range m.Requirements {
		device, ok := selections[req.Role]
		if !ok || device == "" {
			report.Incomplete = true
			continue
		}
		has := granted[device]
		slot := Slot{
			Role:     req.Role,
			Device:   device,
			Required: append([]string{}, req.Tasks...),
			Granted:  append([]string{}, has...),
			Missing:  []string{},
		}
		for _, task := range req.Tasks {
			if !slices.Contains(has, task) {
				slot.Missing = append(slot.Missing, task)
			}
		}
		if len(slot.Missing) > 0 {
			report.Insufficient = true
		}
		report.Slots = append(report.Slots, slot)
	}
	return report, nil
}

// Request is a full eligibility query: the mission, the devices on offer and
// optionally the chosen device per role. Without selections the first
// candidate of every role is used.
type Request struct {
	Mission    string            `json:"mission"`
	Devices    []Device          `json:"devices"`
	Selections map[string]string `json:"selections,omitempty"`
}

// Evaluate runs Candidates, DefaultSelections and Resolve for req.
func (c *Catalog) Evaluate(req Request) (Report, error) {
	m, err := c.Mission(req.Mission)
	if err != nil {
		return Report{}, err
	}
	candidates := m.Candidates(req.Devices)
	selections := req.Selections
	if len(selections) == 0 {
		selections = DefaultSelections(candidates)
	}

	report, err := m.Resolve(selections, m.Granted(req.Devices))
	if err != nil {
		return Report{}, err
	}
	report.Candidates = candidates
	return report, nil
}

// Selections returns role to device for every resolved slot.
func (r Report) Selections() map[string]string {
	out := make(map[string]string, len(r.Slots))
	for _, s := range r.Slots {
		out[s.Role] = s.Device
	}
	return out
}

// MarshalJSON keeps roles in catalog order.
func (r Report) MarshalJSON() ([]byte, error) {
	roles := orderedmap.New()
	for _, s := range r.Slots {
		slot := orderedmap.New()
		slot.Set("device", s.Device)
		slot.Set("required", s.Required)
		slot.Set("granted", s.Granted)
		slot.Set("missing", s.Missing)
		roles.Set(s.Role, slot)
	}

	out := orderedmap.New()
	out.Set("mission", r.Mission)
	if r.Candidates != nil {
		out.Set("candidates", r.Candidates)
	}
	out.Set("roles", roles)
	out.Set("incomplete", r.Incomplete)
	out.Set("insufficient", r.Insufficient)
	return json.Marshal(out)
}
