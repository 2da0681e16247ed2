package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/neboloop/wikirace/internal/game"
	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/navigator"
	"github.com/neboloop/wikirace/internal/race"
)

const reloadDebounce = 100 * time.Millisecond

// tuningFile is the on-disk layout of game.yaml.
type tuningFile struct {
	Tiers        race.Thresholds  `yaml:"tiers"`
	Navigator    navigator.Config `yaml:"navigator"`
	PollInterval time.Duration    `yaml:"poll_interval"`
}

// ParseTuning decodes game.yaml. Missing fields keep their defaults.
func ParseTuning(data []byte) (game.Tuning, error) {
	def := game.DefaultTuning()
	f := tuningFile{Tiers: def.Thresholds, Navigator: def.Navigator, PollInterval: def.PollInterval}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return game.Tuning{}, fmt.Errorf("parse tuning: %w", err)
	}

	switch {
	case f.Tiers.TopTierMaxSteps < 0 || f.Tiers.BottomTierMinSteps <= f.Tiers.TopTierMaxSteps:
		return game.Tuning{}, fmt.Errorf("tiers: top_tier_max_steps (%d) must be below bottom_tier_min_steps (%d)",
			f.Tiers.TopTierMaxSteps, f.Tiers.BottomTierMinSteps)
	case f.Navigator.Budget <= 0:
		return game.Tuning{}, fmt.Errorf("navigator.budget must be positive")
	case f.Navigator.MaxRecoveryFailures <= 0:
		return game.Tuning{}, fmt.Errorf("navigator.max_recovery_failures must be positive")
	case f.PollInterval < 100*time.Millisecond:
		return game.Tuning{}, fmt.Errorf("poll_interval must be at least 100ms")
	}

	return game.Tuning{Thresholds: f.Tiers, Navigator: f.Navigator, PollInterval: f.PollInterval}, nil
}

// TuningStore holds the current game tuning and reloads it when the file
// changes. Races read it once at creation and start.
type TuningStore struct {
	path    string
	current atomic.Pointer[game.Tuning]

	callbacksMu sync.RWMutex
	callbacks   []func(game.Tuning)
}

// NewTuningStore loads path. An empty path or a missing file yields the
// defaults; a malformed file is an error.
func NewTuningStore(path string) (*TuningStore, error) {
	s := &TuningStore{path: path}
	def := game.DefaultTuning()
	s.current.Store(&def)

	if path == "" {
		return s, nil
	}
	if err := s.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

// Get returns the current tuning.
func (s *TuningStore) Get() game.Tuning {
	return *s.current.Load()
}

// OnReload registers fn to run after every successful reload.
func (s *TuningStore) OnReload(fn func(game.Tuning)) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

func (s *TuningStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	t, err := ParseTuning(data)
	if err != nil {
		return err
	}
	s.current.Store(&t)

	s.callbacksMu.RLock()
	defer s.callbacksMu.RUnlock()
	for _, fn := range s.callbacks {
		fn(t)
	}
	return nil
}

// Watch reloads the tuning file on change until ctx is cancelled. A bad edit
// is logged and the previous tuning stays in effect.
func (s *TuningStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("no tuning file configured")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files by rename.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logging.Infof("[Config] watching %s for changes", s.path)

	name := filepath.Base(s.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors may write several times per save.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := s.reload(); err != nil {
					logging.Warnf("[Config] %s not reloaded: %v", name, err)
					return
				}
				logging.Infof("[Config] %s reloaded", name)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warnf("[Config] watcher error: %v", err)
		}
	}
}
