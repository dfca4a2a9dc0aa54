package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/eventflow/internal/cmd/output"
	"github.com/agentstation/eventflow/pkg/events"
	"github.com/agentstation/eventflow/pkg/state"
)

func sampleResolution() *output.Resolution {
	at := utc.New(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		panic(err)
	}
	v := state.Version{0xab}
	return output.NewResolution(at, events.Resolution{
		Current: &events.Occurrence{
			Event: events.ResolvedEvent{ID: "sil", Timezone: "Europe/Berlin"},
			Start: time.Date(2024, 1, 1, 10, 0, 0, 0, berlin),
			End:   time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
		},
		NextChange: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
	}, &v)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    output.Format
		wantErr bool
	}{
		{in: "table", want: output.FormatTable},
		{in: "JSON", want: output.FormatJSON},
		{in: "yaml", want: output.FormatYAML},
		{in: "ics", want: output.FormatICS},
		{in: "", want: ""},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := output.ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, output.FormatYAML, output.DetectFormat("YAML"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Next Change", output.Title("next_change"))
	assert.Equal(t, "Latest Version", output.Title("latest_version"))
}

func TestResolutionJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, output.NewFormatter(output.FormatJSON).Format(&buf, sampleResolution()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]any{"id": "sil", "timezone": "Europe/Berlin"}, got["event"])
	assert.Equal(t, "2024-01-01T11:00:00Z", got["next_change"])
	// Instants in the event's zone are written in UTC.
	assert.Equal(t, "2024-01-01T09:00:00Z", got["start"])
	assert.Equal(t, "2024-01-01T10:00:00Z", got["at"])
	assert.Equal(t, state.Version{0xab}.String(), got["latest_version"])
}

func TestResolutionYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, output.NewFormatter(output.FormatYAML).Format(&buf, sampleResolution()))
	assert.Contains(t, buf.String(), "id: sil")
	assert.Contains(t, buf.String(), "timezone: Europe/Berlin")
}

func TestResolutionTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, output.NewFormatter(output.FormatTable).Format(&buf, sampleResolution()))

	out := buf.String()
	assert.Contains(t, out, "sil")
	assert.Contains(t, out, "Next Change")
	// Times are shown in the event's zone.
	assert.Contains(t, out, "10:00am CET")
}

func TestResolutionNoEvent(t *testing.T) {
	r := output.NewResolution(utc.Now(), events.Resolution{}, nil)

	var buf bytes.Buffer
	require.NoError(t, output.NewFormatter(output.FormatTable).Format(&buf, r))
	assert.Contains(t, buf.String(), "none")

	buf.Reset()
	require.NoError(t, output.NewFormatter(output.FormatICS).Format(&buf, r))
	assert.True(t, strings.HasPrefix(buf.String(), "BEGIN:VCALENDAR"))
	assert.NotContains(t, buf.String(), "BEGIN:VEVENT")
}

func TestICSRejectsOtherData(t *testing.T) {
	err := output.NewFormatter(output.FormatICS).Format(&bytes.Buffer{}, map[string]string{})
	assert.Error(t, err)
}

func TestTableFallbackStruct(t *testing.T) {
	type row struct {
		Name string `json:"event_id"`
	}
	var buf bytes.Buffer
	require.NoError(t, output.NewFormatter(output.FormatTable).Format(&buf, []row{{Name: "sil"}}))
	assert.Contains(t, strings.ToLower(buf.String()), "event id")
}
