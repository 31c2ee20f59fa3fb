package model

import (
	"sync"
	"time"
)

// Level classifies a flash notice for status-bar coloring.
type Level int

const (
	Info Level = iota
	Error
)

// Flash holds the transient status-bar notice. Only one notice is shown at
// a time; a new Set replaces the previous one.
type Flash struct {
	mu      sync.RWMutex
	message string
	level   Level
	expires time.Time
}

// Set stores an informational notice that expires after d.
func (f *Flash) Set(msg string, d time.Duration) {
	f.set(msg, Info, d)
}

// SetError stores an error notice that expires after d.
func (f *Flash) SetError(msg string, d time.Duration) {
	f.set(msg, Error, d)
}

func (f *Flash) set(msg string, lvl Level, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.level = lvl
	f.expires = time.Now().Add(d)
}

// Get returns the current notice and its level, or empty if expired.
func (f *Flash) Get() (string, Level) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return "", Info
	}
	return f.message, f.level
}
