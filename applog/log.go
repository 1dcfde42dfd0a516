// Package applog provides the named, level-filterable zap loggers used
// across pageledger. Each package calls NewNamed once at init time and
// levels can be overridden per name (supporting glob patterns) without
// rebuilding every logger by hand.
package applog

import (
	"sync"

	"github.com/gobwas/glob"
	"go.uber.org/zap"
)

var (
	mu           sync.Mutex
	logger       *zap.Logger
	loggerConfig zap.Config
	namedLevels  []namedLevel
	namedGlobs   = make(map[string]glob.Glob)
	namedLoggers = make(map[string]*zap.Logger)
)

type namedLevel struct {
	name  string
	level zap.AtomicLevel
}

type NamedLevel struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"`
}

func init() {
	loggerConfig = zap.NewDevelopmentConfig()
	logger, _ = loggerConfig.Build()
}

// SetDefault replaces the default logger. Call SetNamedLevels afterwards
// if named loggers are in use, otherwise they keep referencing the old core.
func SetDefault(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	*logger = *l
}

// SetNamedLevels overrides the level for loggers whose name matches one of
// the given names or glob patterns. Intended to be called once at startup.
func SetNamedLevels(nls []NamedLevel) {
	mu.Lock()
	defer mu.Unlock()
	namedLevels = namedLevels[:0]

	minLevel := logger.Level()
	for _, nl := range nls {
		l, err := zap.ParseAtomicLevel(nl.Level)
		if err != nil {
			continue
		}
		namedLevels = append(namedLevels, namedLevel{name: nl.Name, level: l})
		if g, err := glob.Compile(nl.Name); err == nil {
			namedGlobs[nl.Name] = g
		}
		if l.Level() < minLevel {
			minLevel = l.Level()
		}
	}

	if minLevel < logger.Level() {
		loggerConfig.Level = zap.NewAtomicLevelAt(minLevel)
		logger, _ = loggerConfig.Build()
	}

	for name, l := range namedLoggers {
		newCore := zap.New(logger.Core()).Named(name).WithOptions(zap.IncreaseLevel(getLevel(name)))
		*l = *newCore
	}
}

// Default returns the shared root logger.
func Default() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func getLevel(name string) zap.AtomicLevel {
	for _, nl := range namedLevels {
		if nl.name == name {
			return nl.level
		}
		if g, ok := namedGlobs[nl.name]; ok && g.Match(name) {
			return nl.level
		}
	}
	return zap.NewAtomicLevelAt(logger.Level())
}

// NewNamed returns (creating if needed) the logger registered under name.
func NewNamed(name string, fields ...zap.Field) *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := namedLoggers[name]; ok {
		return l
	}
	l := zap.New(logger.Core()).Named(name).WithOptions(
		zap.IncreaseLevel(getLevel(name)),
		zap.Fields(fields...),
	)
	namedLoggers[name] = l
	return l
}
