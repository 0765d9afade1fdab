package visibility

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medpulse/medpulse-connect/internal/sessions"
)

func TestRenderDistinguishesEmptyFromRestricted(t *testing.T) {
	rec := &sessions.Record{ID: "s1", Summary: "Laser pass", Results: "", CareInstructions: "Avoid sun"}

	view := Render(Policy{Summary: true, Results: true, CareInstructions: false}, rec)
	assert.Equal(t, Field{Value: "Laser pass"}, view.Summary)
	assert.Equal(t, Field{Value: ""}, view.Results)
	assert.Equal(t, Field{Restricted: true}, view.CareInstructions)
	assert.Equal(t, RestrictedMarker, view.CareInstructions.String())

	data, err := json.Marshal(view)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Laser pass", decoded["summary"])
	assert.Equal(t, "", decoded["results"])
	assert.Equal(t, "[restricted]", decoded["care_instructions"])
	assert.NotContains(t, string(data), "Avoid sun")
}

func TestRenderAllRestricted(t *testing.T) {
	rec := &sessions.Record{Summary: "a", Results: "b", CareInstructions: "c"}
	view := Render(Policy{}, rec)
	for _, f := range []Field{view.Summary, view.Results, view.CareInstructions} {
		assert.True(t, f.Restricted)
		assert.Empty(t, f.Value)
	}
}
