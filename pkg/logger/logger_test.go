package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmaxmax/abiprobe/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	type test struct {
		input     string
		expect    logger.LogLevel
		expectErr bool
	}

	tests := []test{
		{input: "debug", expect: logger.DebugLevel},
		{input: "INFO", expect: logger.InfoLevel},
		{input: "Warn", expect: logger.WarnLevel},
		{input: "error", expect: logger.ErrorLevel},
		{input: "verbose", expectErr: true},
		{input: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := logger.ParseLevel(tt.input)
			if tt.expectErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.expect, level)
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer

	l := logger.New(&buf, logger.InfoLevel, "json").With("toolchain", "gcc")
	l.DebugWith("hidden")
	l.ErrorWithErr("build failed", errors.New("boom"), "step", "compile-library")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "expected exactly one JSON entry, got %q", buf.String())
	require.Equal(t, "build failed", entry["msg"])
	require.Equal(t, "gcc", entry["toolchain"])
	require.Equal(t, "compile-library", entry["step"])
	require.Equal(t, "boom", entry["error"])
}

func TestGet_Default(t *testing.T) {
	require.NotNil(t, logger.Get())
	require.Same(t, logger.Get(), logger.Get())
}
