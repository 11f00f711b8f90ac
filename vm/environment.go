package vm

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Environment is the runtime's view of environment variables. Every key
// has a cyclic assumption that is renewed when the key changes, so values
// derived from a variable can be cached until it is written.
type Environment struct {
	mu     sync.RWMutex
	vars   map[string]string
	guards map[string]*CyclicAssumption
}

// NewEnvironment creates an environment seeded with vars.
func NewEnvironment(vars map[string]string) *Environment {
	e := &Environment{
		vars:   make(map[string]string, len(vars)),
		guards: make(map[string]*CyclicAssumption),
	}
	for k, v := range vars {
		e.vars[k] = v
	}
	return e
}

// ProcessEnvironment creates an environment seeded from the process.
func ProcessEnvironment() *Environment {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return NewEnvironment(vars)
}

// LoadDotenv sets every variable defined in the given .env files.
func (e *Environment) LoadDotenv(paths ...string) error {
	vars, err := godotenv.Read(paths...)
	if err != nil {
		return fmt.Errorf("cannot read env files: %w", err)
	}
	for k, v := range vars {
		e.Set(k, v)
	}
	return nil
}

// Get returns the value of key.
func (e *Environment) Get(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[key]
	return v, ok
}

// Set assigns key and invalidates values derived from it.
func (e *Environment) Set(key, value string) {
	e.mu.Lock()
	old, had := e.vars[key]
	e.vars[key] = value
	e.mu.Unlock()

	if !had || old != value {
		e.Guard(key).Invalidate()
	}
}

// Delete removes key and invalidates values derived from it.
func (e *Environment) Delete(key string) {
	e.mu.Lock()
	_, had := e.vars[key]
	delete(e.vars, key)
	e.mu.Unlock()

	if had {
		e.Guard(key).Invalidate()
	}
}

// Guard returns the cyclic assumption that key is unmodified.
func (e *Environment) Guard(key string) *CyclicAssumption {
	e.mu.RLock()
	g := e.guards[key]
	e.mu.RUnlock()
	if g != nil {
		return g
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if g = e.guards[key]; g == nil {
		g = NewCyclicAssumption("ENV['" + key + "'] is unmodified")
		e.guards[key] = g
	}
	return g
}

// TimeZone returns a cached value holding the location named by TZ. An
// unset or empty TZ means the local zone.
func (e *Environment) TimeZone(cfg SiteConfig) *CachedValue[*time.Location] {
	return NewCachedValue("ENV['TZ']", e.Guard("TZ"), func() (*time.Location, error) {
		tz, ok := e.Get("TZ")
		if !ok || tz == "" {
			return time.Local, nil
		}
		loc, err := time.LoadLocation(strings.TrimPrefix(tz, ":"))
		if err != nil {
			return nil, fmt.Errorf("invalid TZ %q: %w", tz, err)
		}
		return loc, nil
	}, cfg)
}
