package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyAssembly   = "assembly"
	KeyNamespace  = "namespace"
	KeyAPIID      = "api_id"
	KeyAddIn      = "addin"
	KeyCount      = "count"
	KeyStatus     = "status"
	KeyName       = "name"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Assembly(name string) slog.Attr  { return slog.String(KeyAssembly, name) }
func Namespace(name string) slog.Attr { return slog.String(KeyNamespace, name) }
func APIID(id string) slog.Attr       { return slog.String(KeyAPIID, id) }
func AddIn(name string) slog.Attr     { return slog.String(KeyAddIn, name) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
