package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharmLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "logfmt")

	log.Debug("dbg", "a", 1)
	log.Info("inf", "b", 2)
	log.Warn("wrn", "c", 3)
	log.Error("err", "d", 4)

	out := buf.String()
	assert.NotContains(t, out, "msg=dbg")
	assert.NotContains(t, out, "msg=inf")
	assert.Contains(t, out, "msg=wrn")
	assert.Contains(t, out, "c=3")
	assert.Contains(t, out, "msg=err")
	assert.Contains(t, out, "d=4")
}

func TestCharmLogger_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "logfmt").With("cast_id", 7)

	log.Info("posted", "status", "posted")

	out := buf.String()
	assert.Contains(t, out, "cast_id=7")
	assert.Contains(t, out, "status=posted")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "loud", "text")

	log.Debug("hidden")
	log.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
