package logfields

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
		{"Stage", KeyStage, "reflect", Stage("reflect")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"File", KeyFile, "Widget.cs", File("Widget.cs")},
		{"Assembly", KeyAssembly, "Contoso.Core", Assembly("Contoso.Core")},
		{"Namespace", KeyNamespace, "Contoso", Namespace("Contoso")},
		{"APIID", KeyAPIID, "T:Contoso.Widget", APIID("T:Contoso.Widget")},
		{"AddIn", KeyAddIn, "extension-methods", AddIn("extension-methods")},
		{"Status", KeyStatus, "success", Status("success")},
		{"Name", KeyName, "n", Name("n")},
	}

	for _, tc := range cases {
		// Key drift would break log ingestion schemas.
		require.Equal(t, tc.attrKey, tc.attr.Key, tc.name)
		require.Equal(t, tc.attrVal, tc.attr.Value.String(), tc.name)
	}
}

func TestNumericAndErrorHelpers(t *testing.T) {
	require.Equal(t, int64(3), Count(3).Value.Int64())
	require.InDelta(t, 1.5, DurationMS(1.5).Value.Float64(), 0.0001)
	require.Equal(t, "", Error(nil).Value.String())
	require.Equal(t, "boom", Error(errors.New("boom")).Value.String())
}
