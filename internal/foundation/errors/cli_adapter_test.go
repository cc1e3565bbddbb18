package errors

import (
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("invalid input").Build(), expected: 2},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "metadata", err: MetadataError("unresolved type").Build(), expected: 9},
		{name: "merge", err: MergeError("rename failed").Build(), expected: 11},
		{name: "internal", err: InternalError("boom").Build(), expected: 10},
		{name: "unclassified", err: stderrors.New("unknown"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	err := WrapError(stderrors.New("no such file"), CategoryConfig, "cannot read config").Build()
	require.Equal(t, "Error: cannot read config: no such file", quiet.FormatError(err))
	require.Equal(t, err.Error(), verbose.FormatError(err))

	internal := InternalError("nil writer").Build()
	require.Equal(t, "Internal error occurred (use -v for details)", quiet.FormatError(internal))
	require.Empty(t, quiet.FormatError(nil))
}
