package debug

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_PrefixesByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelVerbose, &buf)

	log.Verbose("prop %d", 7)
	log.Status("opening session")
	log.Warning("already recording")
	log.Errorf("boom: %s", "x")

	out := buf.String()
	assert.Contains(t, out, "[verbose] prop 7")
	assert.Contains(t, out, "[status] opening session")
	assert.Contains(t, out, "[warning] already recording")
	assert.Contains(t, out, "[error] boom: x")
}

func TestLogger_LevelFiltering(t *testing.T) {
	cases := []struct {
		name    string
		level   int
		want    []string
		notWant []string
	}{
		{"error", LevelError, []string{"[error]"}, []string{"[warning]", "[status]", "[verbose]"}},
		{"warning", LevelWarning, []string{"[error]", "[warning]"}, []string{"[status]", "[verbose]"}},
		{"status", LevelStatus, []string{"[error]", "[warning]", "[status]"}, []string{"[verbose]"}},
		{"verbose", LevelVerbose, []string{"[error]", "[warning]", "[status]", "[verbose]"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(tc.level, &buf)
			log.Verbose("v")
			log.Status("s")
			log.Warning("w")
			log.Errorf("e")

			out := buf.String()
			for _, w := range tc.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tc.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestLogger_LevelClamped(t *testing.T) {
	assert.Equal(t, LevelError, New(-3, nil).Level())
	assert.Equal(t, LevelVerbose, New(42, nil).Level())
}

func TestLogger_WithAddsField(t *testing.T) {
	var raw bytes.Buffer
	log := New(LevelStatus, nil, &raw).With("session_id", "abc")
	log.Status("hello")

	var evt map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw.Bytes()), &evt))
	assert.Equal(t, "abc", evt["session_id"])
	assert.Equal(t, "hello", evt["message"])
	assert.Equal(t, "info", evt["level"])
}

func TestLogger_ErrorNilIsNoop(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelVerbose, &buf)
	log.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_SectionOnlyWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	New(LevelStatus, &buf).Section("Open")
	assert.Empty(t, buf.String())

	New(LevelVerbose, &buf).Section("Open")
	assert.True(t, strings.Contains(buf.String(), "Open"))
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "verbose", LevelName(zerolog.DebugLevel))
	assert.Equal(t, "status", LevelName(zerolog.InfoLevel))
	assert.Equal(t, "warning", LevelName(zerolog.WarnLevel))
	assert.Equal(t, "error", LevelName(zerolog.ErrorLevel))
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Status("nothing")
	log.Error(assert.AnError)
}
