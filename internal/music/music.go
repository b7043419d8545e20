// Package music selects background tracks per difficulty and reacts to audio focus
// changes reported by the host platform.
package music

import (
	"errors"
	"log/slog"
	"sync"

	"narvalo-quiz/internal/domain"
)

// Track identifies a piece of background music (a URL the client can stream).
type Track string

var tracks = map[domain.Difficulty]Track{
	domain.DifficultyAny:     "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-8.mp3",
	domain.DifficultyEasy:    "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3",
	domain.DifficultyMedium:  "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-8.mp3",
	domain.DifficultyHard:    "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-15.mp3",
	domain.DifficultyEmilien: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
}

// TrackFor returns the background track played for d.
func TrackFor(d domain.Difficulty) Track {
	if t, ok := tracks[d]; ok {
		return t
	}
	return tracks[domain.DifficultyMedium]
}

// FocusChange is an audio focus notification from the platform.
type FocusChange int

const (
	FocusGain FocusChange = iota
	FocusLoss
	FocusLossTransient
	FocusLossTransientCanDuck
)

const (
	FullVolume   = 1.0
	DuckedVolume = 0.3
)

// ErrFocusDenied is returned by Play when the platform refuses audio focus.
var ErrFocusDenied = errors.New("audio focus denied")

// Output is the low-level sink that actually decodes and renders audio.
type Output interface {
	Open(track Track, loop bool) error
	Start()
	Pause()
	Stop()
	SetVolume(v float64)
	Close()
}

// Focus requests and abandons audio focus. A nil Focus always grants.
type Focus interface {
	Request() bool
	Abandon()
}

// Manager plays at most one track at a time on an Output.
type Manager struct {
	out    Output
	focus  Focus
	logger *slog.Logger

	mu      sync.Mutex
	current Track
	opened  bool
	playing bool
}

func NewManager(out Output, focus Focus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{out: out, focus: focus, logger: logger.With("component", "music")}
}

// Play starts track, replacing whatever was playing. Playing the current track again is a no-op.
func (m *Manager) Play(track Track, loop bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing && track == m.current {
		return nil
	}
	if m.focus != nil && !m.focus.Request() {
		m.logger.Warn("audio focus request denied")
		return ErrFocusDenied
	}
	m.stopLocked(false)

	if err := m.out.Open(track, loop); err != nil {
		m.logger.Error("open track failed", "track", string(track), "error", err)
		if m.focus != nil {
			m.focus.Abandon()
		}
		return err
	}
	m.current = track
	m.opened = true
	m.out.SetVolume(FullVolume)
	m.out.Start()
	m.playing = true
	return nil
}

// Stop halts playback, releases the output and abandons focus.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(true)
}

// Release frees the player; it is Stop under another name for lifecycle hooks.
func (m *Manager) Release() { m.Stop() }

func (m *Manager) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Current returns the track loaded in the output, if any.
func (m *Manager) Current() (Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.opened
}

// OnFocusChange applies the platform's focus notification.
func (m *Manager) OnFocusChange(change FocusChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return
	}
	switch change {
	case FocusLoss:
		m.logger.Debug("audio focus lost, stopping")
		m.out.Stop()
		m.playing = false
	case FocusLossTransient:
		if m.playing {
			m.logger.Debug("audio focus lost temporarily, pausing")
			m.out.Pause()
			m.playing = false
		}
	case FocusLossTransientCanDuck:
		if m.playing {
			m.out.SetVolume(DuckedVolume)
		}
	case FocusGain:
		m.out.SetVolume(FullVolume)
		m.out.Start()
		m.playing = true
	}
}

func (m *Manager) stopLocked(abandon bool) {
	if !m.opened {
		return
	}
	m.out.Stop()
	m.out.Close()
	m.opened = false
	m.playing = false
	m.current = ""
	if abandon && m.focus != nil {
		m.focus.Abandon()
	}
}
