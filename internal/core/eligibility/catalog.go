// Package eligibility matches available devices against the roles a mission
// needs and reports which selected devices lack the tasks their role requires.
package eligibility

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iancoleman/orderedmap"
)

// keySeparator splits a catalog device key into role and device type.
const keySeparator = "::"

// Requirement is one role slot of a mission.
type Requirement struct {
	Role       string   `json:"role"`
	DeviceType string   `json:"deviceType"`
	Tasks      []string `json:"tasks"`
}

// Mission is a named set of role requirements in catalog order.
type Mission struct {
	Name         string        `json:"mission"`
	Requirements []Requirement `json:"requirements"`
}

// Requirement returns the slot for role.
func (m Mission) Requirement(role string) (Requirement, bool) {
	for _, r := range m.Requirements {
		if r.Role == role {
			return r, true
		}
	}
	return Requirement{}, false
}

// Catalog is the parsed mission settings document.
type Catalog struct {
	missions []Mission
}

type catalogDoc struct {
	Settings []struct {
		Mission string                   `json:"mission"`
		Devices []*orderedmap.OrderedMap `json:"devices"`
	} `json:"settings"`
}

// ParseCatalog reads a document of the form
//
//	{"settings": [{"mission": "Supply Delivery",
//	               "devices": [{"surveillance::drone": ["observe"]}, ...]}]}
//
// keeping missions and roles in document order.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var doc catalogDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{}
	seen := make(map[string]bool, len(doc.Settings))
	for _, s := range doc.Settings {
		if s.Mission == "" {
			return nil, fmt.Errorf("%w: mission without a name", ErrInvalidCatalog)
		}
		if seen[s.Mission] {
			return nil, fmt.Errorf("%w: mission %q listed twice", ErrInvalidCatalog, s.Mission)
		}
		seen[s.Mission] = true

		m := Mission{Name: s.Mission}
		for _, entry := range s.Devices {
			if entry == nil {
				continue
			}
			for _, key := range entry.Keys() {
				value, _ := entry.Get(key)
				req, err := parseRequirement(key, value)
				if err != nil {
					return nil, fmt.Errorf("%w: mission %q: %v", ErrInvalidCatalog, s.Mission, err)
				}
				if _, dup := m.Requirement(req.Role); dup {
					return nil, fmt.Errorf("%w: mission %q: role %q listed twice", ErrInvalidCatalog, s.Mission, req.Role)
				}
				m.Requirements = append(m.Requirements, req)
			}
		}
		c.missions = append(c.missions, m)
	}
	return c, nil
}

func parseRequirement(key string, value any) (Requirement, error) {
	role, deviceType, ok := strings.Cut(key, keySeparator)
	if !ok || role == "" || deviceType == "" {
		return Requirement{}, fmt.Errorf("key %q is not role%sdeviceType", key, keySeparator)
	}
	list, ok := value.([]any)
	if !ok {
		return Requirement{}, fmt.Errorf("tasks of %q must be a list", key)
	}
	tasks := make([]string, 0, len(list))
	for _, v := range list {
		task, ok := v.(string)
		if !ok {
			return Requirement{}, fmt.Errorf("task %v of %q is not a string", v, key)
		}
		tasks = append(tasks, task)
	}
	return Requirement{Role: role, DeviceType: deviceType, Tasks: tasks}, nil
}

// Missions returns the mission names in catalog order.
func (c *Catalog) Missions() []string {
	names := make([]string, len(c.missions))
	for i, m := range c.missions {
		names[i] = m.Name
	}
	return names
}

// Mission looks a mission up by name.
func (c *Catalog) Mission(name string) (Mission, error) {
	for _, m := range c.missions {
		if m.Name == name {
			return m, nil
		}
	}
	return Mission{}, fmt.Errorf("%w: %q", ErrUnknownMission, name)
}
