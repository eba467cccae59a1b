package fedlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)

	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
	}
	for in, expected := range cases {
		lvl, err := parseLevel(in)
		assert.NoError(err, in)
		assert.Equal(expected, lvl, in)
	}

	_, err := parseLevel("loud")
	assert.Error(err)
}

func TestReloadLoggerWritesToFile(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "router.log")
	prev := Zero
	defer func() { Zero = prev }()

	assert.NoError(ReloadLogger(path, "info"))
	Zero.Info().Str("store", "historic").Msg("hello")
	Zero.Debug().Msg("filtered out")

	data, err := os.ReadFile(path)
	assert.NoError(err)
	assert.Contains(string(data), "hello")
	assert.Contains(string(data), "historic")
	assert.NotContains(string(data), "filtered out")
}
