package eligibility

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogJSON = `{
  "settings": [
    {"mission": "Supply Delivery", "devices": [
      {"surveillance::drone": ["observe", "navigate"]},
      {"supply::drone": ["navigate", "carry_payload"]}
    ]},
    {"mission": "Area Survey", "devices": [
      {"ground::rover": ["navigate"], "overwatch::drone": ["observe"]}
    ]}
  ]
}`

var fleet = []Device{
	{Name: "Hawk-1", Type: "drone", AllowedTasks: []string{"observe", "navigate"}},
	{Name: "Mule-2", Type: "drone", AllowedTasks: []string{"navigate"}},
	{Name: "Rover-7", Type: "rover", AllowedTasks: []string{"navigate"}},
}

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := ParseCatalog(strings.NewReader(catalogJSON))
	require.NoError(t, err)
	return c
}

func TestParseCatalogKeepsOrder(t *testing.T) {
	c := mustCatalog(t)
	assert.Equal(t, []string{"Supply Delivery", "Area Survey"}, c.Missions())

	m, err := c.Mission("Supply Delivery")
	require.NoError(t, err)
	assert.Equal(t, []Requirement{
		{Role: "surveillance", DeviceType: "drone", Tasks: []string{"observe", "navigate"}},
		{Role: "supply", DeviceType: "drone", Tasks: []string{"navigate", "carry_payload"}},
	}, m.Requirements)

	// several keys in one entry keep their document order
	survey, err := c.Mission("Area Survey")
	require.NoError(t, err)
	require.Len(t, survey.Requirements, 2)
	assert.Equal(t, "ground", survey.Requirements[0].Role)
	assert.Equal(t, "overwatch", survey.Requirements[1].Role)

	_, err = c.Mission("Nope")
	assert.ErrorIs(t, err, ErrUnknownMission)
}

func TestParseCatalogErrors(t *testing.T) {
	tests := map[string]string{
		"malformed":    `{"settings": [`,
		"no separator": `{"settings": [{"mission": "m", "devices": [{"drone": ["x"]}]}]}`,
		"empty role":   `{"settings": [{"mission": "m", "devices": [{"::drone": ["x"]}]}]}`,
		"not a list":   `{"settings": [{"mission": "m", "devices": [{"a::drone": "x"}]}]}`,
		"not a string": `{"settings": [{"mission": "m", "devices": [{"a::drone": [1]}]}]}`,
		"unnamed":      `{"settings": [{"devices": []}]}`,
		"dup mission":  `{"settings": [{"mission": "m"}, {"mission": "m"}]}`,
		"dup role":     `{"settings": [{"mission": "m", "devices": [{"a::drone": []}, {"a::rover": []}]}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestCandidatesAndDefaults(t *testing.T) {
	m, err := mustCatalog(t).Mission("Supply Delivery")
	require.NoError(t, err)

	cands := m.Candidates(fleet)
	assert.Equal(t, []string{"surveillance", "supply"}, cands.Keys())
	v, _ := cands.Get("supply")
	assert.Equal(t, []string{"Hawk-1", "Mule-2"}, v)

	assert.Equal(t, map[string]string{"surveillance": "Hawk-1", "supply": "Hawk-1"}, DefaultSelections(cands))

	// a role without candidates gets no default
	survey, err := mustCatalog(t).Mission("Area Survey")
	require.NoError(t, err)
	defaults := DefaultSelections(survey.Candidates(fleet[2:]))
	assert.Equal(t, map[string]string{"ground": "Rover-7"}, defaults)
}

func TestGrantedOnlyRelevantTypes(t *testing.T) {
	m, err := mustCatalog(t).Mission("Supply Delivery")
	require.NoError(t, err)
	granted := m.Granted(fleet)
	assert.Len(t, granted, 2)
	assert.NotContains(t, granted, "Rover-7")
}

func TestResolve(t *testing.T) {
	m, err := mustCatalog(t).Mission("Supply Delivery")
	require.NoError(t, err)
	granted := m.Granted(fleet)

	report, err := m.Resolve(map[string]string{"surveillance": "Hawk-1", "supply": "Mule-2"}, granted)
	require.NoError(t, err)
	assert.False(t, report.Incomplete)
	assert.True(t, report.Insufficient)
	assert.False(t, report.Ready())

	scout, ok := report.Slot("surveillance")
	require.True(t, ok)
	assert.Empty(t, scout.Missing)
	supply, ok := report.Slot("supply")
	require.True(t, ok)
	assert.Equal(t, []string{"carry_payload"}, supply.Missing)
	assert.Equal(t, []string{"navigate"}, supply.Granted)

	report, err = m.Resolve(map[string]string{"surveillance": "Hawk-1"}, granted)
	require.NoError(t, err)
	assert.True(t, report.Incomplete)
	assert.False(t, report.Insufficient)

	// unknown devices hold no tasks
	report, err = m.Resolve(map[string]string{"surveillance": "Ghost", "supply": "Ghost"}, granted)
	require.NoError(t, err)
	assert.True(t, report.Insufficient)
	ghost, _ := report.Slot("surveillance")
	assert.Equal(t, []string{"observe", "navigate"}, ghost.Missing)
	assert.Equal(t, []string{}, ghost.Granted)

	_, err = m.Resolve(map[string]string{"pilot": "Hawk-1"}, granted)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestResolveReady(t *testing.T) {
	m, err := mustCatalog(t).Mission("Supply Delivery")
	require.NoError(t, err)
	granted := map[string][]string{"Hawk-1": {"observe", "navigate", "carry_payload"}}

	report, err := m.Resolve(map[string]string{"surveillance": "Hawk-1", "supply": "Hawk-1"}, granted)
	require.NoError(t, err)
	assert.True(t, report.Ready())
	assert.Equal(t, map[string]string{"surveillance": "Hawk-1", "supply": "Hawk-1"}, report.Selections())
}

func TestEvaluateAndJSON(t *testing.T) {
	c := mustCatalog(t)
	report, err := c.Evaluate(Request{Mission: "Supply Delivery", Devices: fleet})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"surveillance": "Hawk-1", "supply": "Hawk-1"}, report.Selections())
	assert.True(t, report.Insufficient)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	out := string(data)
	assert.Less(t, strings.Index(out, `"surveillance":{"device"`), strings.Index(out, `"supply":{"device"`))
	assert.Contains(t, out, `"missing":["carry_payload"]`)
	assert.Contains(t, out, `"candidates":{"surveillance":["Hawk-1","Mule-2"],"supply":["Hawk-1","Mule-2"]}`)
	assert.Contains(t, out, `"insufficient":true`)

	_, err = c.Evaluate(Request{Mission: "Unknown"})
	assert.ErrorIs(t, err, ErrUnknownMission)
}
