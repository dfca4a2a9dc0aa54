package descriptors

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/errors"
)

// Store loads descriptors by ID. Implementations read fresh on every call;
// callers that want caching add it themselves.
type Store interface {
	Event(ctx context.Context, id string) (*Event, error)
	Location(ctx context.Context, id string) (*Location, error)
	ListEvents(ctx context.Context) ([]string, error)
}

// FSStore reads descriptors from two directories on an afero filesystem.
type FSStore struct {
	fs            afero.Fs
	eventsPath    string
	locationsPath string
}

// StoreOption configures an FSStore.
type StoreOption func(*FSStore)

// WithFs replaces the OS filesystem, typically with afero.NewMemMapFs in tests.
func WithFs(fs afero.Fs) StoreOption {
	return func(s *FSStore) {
		s.fs = fs
	}
}

// NewFSStore returns a store rooted at the given events and locations directories.
func NewFSStore(eventsPath, locationsPath string, opts ...StoreOption) *FSStore {
	s := &FSStore{
		fs:            afero.NewOsFs(),
		eventsPath:    eventsPath,
		locationsPath: locationsPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EventsPath returns the directory holding event descriptors.
func (s *FSStore) EventsPath() string { return s.eventsPath }

// Fs returns the underlying filesystem.
func (s *FSStore) Fs() afero.Fs { return s.fs }

// Event loads the event descriptor with the given ID.
func (s *FSStore) Event(ctx context.Context, id string) (*Event, error) {
	var ev Event
	if err := s.load(ctx, errors.DescriptorEvent, s.eventsPath, id, &ev); err != nil {
		return nil, err
	}
	ev.ID = id
	return &ev, nil
}

// Location loads the location descriptor with the given ID.
func (s *FSStore) Location(ctx context.Context, id string) (*Location, error) {
	var loc Location
	if err := s.load(ctx, errors.DescriptorLocation, s.locationsPath, id, &loc); err != nil {
		return nil, err
	}
	if loc.Timezone.IsZero() {
		path := filepath.Join(s.locationsPath, id+constants.DescriptorExt)
		return nil, errors.WrapDescriptor(errors.DescriptorLocation, id,
			errors.NewParseError("json", path, "missing timezone", nil))
	}
	loc.ID = id
	return &loc, nil
}

// ListEvents returns the IDs of all event descriptors in directory order.
func (s *FSStore) ListEvents(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := ReadDirNames(s.fs, s.eventsPath)
	if err != nil {
		return nil, errors.WrapDescriptor(errors.DescriptorEvent, "", err)
	}
	return EventIDs(names)
}

func (s *FSStore) load(ctx context.Context, kind errors.DescriptorKind, dir, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(dir, id+constants.DescriptorExt)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return errors.WrapDescriptor(kind, id, errors.WrapIO("read", path, err))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.WrapDescriptor(kind, id, errors.WrapParse("json", path, err))
	}
	return nil
}

// ReadDirNames lists the entry names of dir, sorted.
func ReadDirNames(fs afero.Fs, dir string) ([]string, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.WrapIO("list", dir, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}
