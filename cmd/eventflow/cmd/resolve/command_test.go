package resolve_test

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/eventflow/cmd/application"
	"github.com/agentstation/eventflow/cmd/eventflow/cmd/resolve"
	"github.com/agentstation/eventflow/internal/node/nodetest"
	"github.com/agentstation/eventflow/internal/version"
	"github.com/agentstation/eventflow/pkg/descriptors"
	"github.com/agentstation/eventflow/pkg/errors"
)

func newApp(t *testing.T, format string, files map[string]string) *application.Mock {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(nodetest.EventsDir, 0o755))
	require.NoError(t, fs.MkdirAll(nodetest.LocationsDir, 0o755))
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, path.Join(nodetest.EventsDir, name), []byte(content), 0o644))
	}
	return &application.Mock{
		StoreFunc: func() *descriptors.FSStore {
			return descriptors.NewFSStore(nodetest.EventsDir, nodetest.LocationsDir, descriptors.WithFs(fs))
		},
		VersionsFunc: func() version.Provider {
			return version.Static{Version: nodetest.Version}
		},
		OutputFormatFunc: func() string { return format },
	}
}

func execute(t *testing.T, app *application.Mock, args ...string) (string, error) {
	t.Helper()
	cmd := resolve.NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveCurrentEvent(t *testing.T) {
	app := newApp(t, "json", map[string]string{
		"sil.json":  nodetest.Ongoing,
		"past.json": nodetest.EventJSON("2023-01-01T10:00:00", "2023-01-01T12:00:00"),
	})

	out, err := execute(t, app, "--at", "2024-01-01T10:00:00Z")
	require.NoError(t, err)

	var got struct {
		Event *struct {
			ID       string `json:"id"`
			Timezone string `json:"timezone"`
		} `json:"event"`
		LatestVersion string `json:"latest_version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Event)
	assert.Equal(t, "sil", got.Event.ID)
	assert.Equal(t, "Europe/Berlin", got.Event.Timezone)
	assert.Equal(t, nodetest.Version.String(), got.LatestVersion)
}

func TestResolveNoEvent(t *testing.T) {
	app := newApp(t, "json", map[string]string{
		"sil.json": nodetest.Ongoing,
	})

	out, err := execute(t, app, "--at", "2024-02-01T10:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, `"event": null`)
}

func TestResolveICS(t *testing.T) {
	app := newApp(t, "ics", map[string]string{
		"sil.json": nodetest.Ongoing,
	})

	out, err := execute(t, app, "--at", "2024-01-01T10:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "DTSTART:20240101T090000Z")
}

func TestResolveVersionUnavailable(t *testing.T) {
	app := newApp(t, "json", map[string]string{
		"sil.json": nodetest.Ongoing,
	})
	app.VersionsFunc = func() version.Provider {
		return version.Static{Err: errors.WrapVersion("/repo", errors.New("not a git repository"))}
	}

	out, err := execute(t, app, "--at", "2024-01-01T10:00:00Z")
	require.NoError(t, err)
	assert.NotContains(t, out, "latest_version")
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		args  []string
		kind  errors.Kind
	}{
		{
			name:  "non-json file",
			files: map[string]string{"sil.json": nodetest.Ongoing, "notes.txt": "x"},
			kind:  errors.KindDescriptorLookup,
		},
		{
			name:  "broken descriptor",
			files: map[string]string{"sil.json": "{"},
			kind:  errors.KindDescriptorLookup,
		},
		{
			name: "overlapping events",
			files: map[string]string{
				"a.json": nodetest.Ongoing,
				"b.json": nodetest.Ongoing,
			},
			kind: errors.KindDataIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(t, "json", tt.files)
			_, err := execute(t, app, "--at", "2024-01-01T10:00:00Z")
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}
}

func TestResolveInvalidAt(t *testing.T) {
	app := newApp(t, "json", nil)
	_, err := execute(t, app, "--at", "tomorrow")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}
