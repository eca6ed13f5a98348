package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_json(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	require.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	log.Info().Str("build_id", "abc").Msg("Building assets")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "Building assets", entry["message"])
	require.Equal(t, "abc", entry["build_id"])
	require.Contains(t, entry, "time")
	require.Contains(t, entry, "caller")
}

func TestNew_dev(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	require.Equal(t, zerolog.DebugLevel, log.GetLevel())

	log.Debug().Msg("visible")
	require.Contains(t, buf.String(), "visible")
	require.False(t, json.Valid(buf.Bytes()))
}
