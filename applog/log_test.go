package applog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewNamedReturnsSameLoggerForSameName(t *testing.T) {
	a := NewNamed("pkg.test.a")
	b := NewNamed("pkg.test.a")
	assert.Same(t, a, b)
}

func TestNewNamedReturnsDistinctLoggersForDistinctNames(t *testing.T) {
	a := NewNamed("pkg.test.b1")
	b := NewNamed("pkg.test.b2")
	assert.NotSame(t, a, b)
}

func TestSetNamedLevelsMatchesGlob(t *testing.T) {
	NewNamed("glob.test.child")
	SetNamedLevels([]NamedLevel{{Name: "glob.test.*", Level: "error"}})
	assert.Equal(t, zap.ErrorLevel, getLevel("glob.test.child").Level())
}

func TestDefaultReturnsNonNilLogger(t *testing.T) {
	assert.NotNil(t, Default())
}
