package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateFileKey_ModelScoped(t *testing.T) {
	g := NewFileKeyGenerator(StrategyModelScoped, "uploads/")

	assert.Equal(t, "uploads/m-1/Small_Office.fmu", g.GenerateFileKey("Small Office.FMU", "m-1"))
	assert.Equal(t, "uploads/m-1/model.zip", g.GenerateFileKey("???.zip", "m-1"))
	assert.Equal(t, "uploads/m-1/passwd.zip", g.GenerateFileKey("../../etc/passwd.zip", "m-1"))
}

func TestGenerateFileKey_AlwaysUnderPrefix(t *testing.T) {
	for _, s := range []FileKeyStrategy{StrategyModelScoped, StrategyDateBased, StrategyHashBased} {
		g := NewFileKeyGenerator(s, "uploads")
		g.now = func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) }
		key := g.GenerateFileKey("model.zip", "abc")
		assert.True(t, strings.HasPrefix(key, "uploads/"), key)
		assert.True(t, strings.HasSuffix(key, ".zip"), key)
	}
}

func TestCleanFilename_Truncates(t *testing.T) {
	g := NewFileKeyGenerator(StrategyModelScoped, "uploads")
	name := g.CleanFilename(strings.Repeat("a", 80) + ".fmu")
	assert.Equal(t, strings.Repeat("a", 50)+".fmu", name)
}
