// Package store persists the action table between restarts.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/keyless-relay/internal/actions"
	"github.com/sweeney/keyless-relay/internal/logic"
)

// DefaultPath is where the daemon keeps its action table.
const DefaultPath = "/var/lib/keyless-relay/actions.toml"

// ErrCorrupt is returned when the action file exists but cannot be decoded.
var ErrCorrupt = errors.New("corrupt action file")

// corruptSuffix is appended to an undecodable file when Save replaces it.
const corruptSuffix = ".corrupt"

// fileFormat is the on-disk layout:
//
//	[channel.0]
//	short = "1"
//	long = "none"
type fileFormat struct {
	Channel map[string]map[string]string `toml:"channel"`
}

// FileStore keeps the action table in a TOML file.
// The whole file is rewritten on every Save.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	cache  actions.Mapping
	loaded bool
}

// NewFileStore creates a store backed by path. The file need not exist yet.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty mapping. Entries with an
// unknown channel, gesture, or unparsable action are skipped with a warning.
func (s *FileStore) Load() (actions.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return nil, err
	}
	s.cache = m
	s.loaded = true
	return copyMapping(m), nil
}

// Save sets one entry and rewrites the file. An undecodable file is moved
// aside to <path>.corrupt and replaced, starting from an empty table; that
// matches what the daemon runs with after a failed Load.
func (s *FileStore) Save(ch int, g logic.Gesture, a logic.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		m, err := s.read()
		switch {
		case errors.Is(err, ErrCorrupt):
			bad := s.path + corruptSuffix
			if rerr := os.Rename(s.path, bad); rerr != nil {
				return fmt.Errorf("move aside corrupt action file: %w", rerr)
			}
			s.logger.Warn("replacing corrupt action file", "path", s.path, "moved_to", bad, "error", err)
			m = actions.Mapping{}
		case err != nil:
			return err
		}
		s.cache = m
		s.loaded = true
	}

	key := actions.Key{Channel: ch, Gesture: g}
	if a == logic.NoAction {
		delete(s.cache, key)
	} else {
		s.cache[key] = a
	}
	return s.write(s.cache)
}

func (s *FileStore) read() (actions.Mapping, error) {
	var f fileFormat
	if _, err := toml.DecodeFile(s.path, &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return actions.Mapping{}, nil
		}
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	m := actions.Mapping{}
	for chKey, gestures := range f.Channel {
		ch, err := strconv.Atoi(chKey)
		if err != nil || ch < 0 || ch >= logic.Channels {
			s.logger.Warn("skipping unknown channel in action file", "channel", chKey, "path", s.path)
			continue
		}
		for gKey, val := range gestures {
			g, err := logic.ParseGesture(gKey)
			if err != nil {
				s.logger.Warn("skipping unknown gesture in action file", "channel", ch, "gesture", gKey)
				continue
			}
			a, err := logic.ParseAction(val)
			if err != nil {
				s.logger.Warn("skipping invalid action in action file", "channel", ch, "gesture", gKey, "error", err)
				continue
			}
			if a != logic.NoAction {
				m[actions.Key{Channel: ch, Gesture: g}] = a
			}
		}
	}
	return m, nil
}

func (s *FileStore) write(m actions.Mapping) error {
	f := fileFormat{Channel: map[string]map[string]string{}}
	keys := make([]actions.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Channel != keys[j].Channel {
			return keys[i].Channel < keys[j].Channel
		}
		return keys[i].Gesture < keys[j].Gesture
	})
	for _, k := range keys {
		chKey := strconv.Itoa(k.Channel)
		if f.Channel[chKey] == nil {
			f.Channel[chKey] = map[string]string{}
		}
		f.Channel[chKey][k.Gesture.String()] = m[k].String()
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create action dir: %w", err)
	}

	// Write to a temp file and rename so a power cut never leaves a torn file.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".actions-*.toml")
	if err != nil {
		return fmt.Errorf("create temp action file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(f); err != nil {
		tmp.Close()
		return fmt.Errorf("encode actions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync action file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close action file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace action file: %w", err)
	}
	return nil
}

func copyMapping(m actions.Mapping) actions.Mapping {
	out := make(actions.Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
