// Package sourcecontext maps declarations to source files below a configured base path.
package sourcecontext

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

// Resolver finds source contexts for types and relativizes member contexts. A nil
// Resolver, or one without a base path, resolves nothing.
type Resolver struct {
	fs            afero.Fs
	basePath      string
	warnOnMissing bool
	logger        *slog.Logger

	mu    sync.Mutex
	types map[*metadata.TypeNode]metadata.SourceContext
}

// New returns a resolver searching basePath on fs.
func New(fs afero.Fs, basePath string) *Resolver {
	return &Resolver{
		fs:       fs,
		basePath: filepath.Clean(basePath),
		logger:   slog.Default(),
		types:    make(map[*metadata.TypeNode]metadata.SourceContext),
	}
}

// WithLogger sets the logger used for missing-context reports.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithWarnOnMissing reports types without a source file as warnings instead of info.
func (r *Resolver) WithWarnOnMissing(warn bool) *Resolver {
	r.warnOnMissing = warn
	return r
}

// Enabled reports whether source contexts are written at all.
func (r *Resolver) Enabled() bool {
	return r != nil && r.basePath != "" && r.basePath != "."
}

// Relativize strips the base path from a file name. Absolute names outside the base
// path yield "", other relative names are returned unchanged.
func (r *Resolver) Relativize(file string) string {
	base := r.basePath
	if len(file) > len(base) && strings.EqualFold(file[:len(base)], base) &&
		(file[len(base)] == '/' || file[len(base)] == '\\') {
		return strings.TrimLeft(file[len(base):], `/\`)
	}
	if isAbs(file) {
		return ""
	}
	return file
}

func isAbs(p string) bool {
	return filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) ||
		(len(p) > 2 && p[1] == ':' && (p[2] == '\\' || p[2] == '/'))
}

// Member returns the relativized form of a member's own source context.
func (r *Resolver) Member(ctx metadata.SourceContext) metadata.SourceContext {
	if !r.Enabled() || ctx.IsZero() {
		return metadata.SourceContext{}
	}
	ctx.File = r.Relativize(ctx.File)
	return ctx
}

// Type returns the source file of a type. The file of the first exposed method,
// constructor or property accessor with a known context wins; otherwise the base path
// is searched for a file named after the type. Type contexts carry no line number.
func (r *Resolver) Type(t *metadata.TypeNode, exposed func(metadata.Member) bool) metadata.SourceContext {
	if !r.Enabled() || t == nil {
		return metadata.SourceContext{}
	}
	t = t.TemplateType()
	r.mu.Lock()
	ctx, ok := r.types[t]
	r.mu.Unlock()
	if ok {
		return ctx
	}

	ctx = r.resolveType(t, exposed)
	r.mu.Lock()
	r.types[t] = ctx
	r.mu.Unlock()
	return ctx
}

func (r *Resolver) resolveType(t *metadata.TypeNode, exposed func(metadata.Member) bool) metadata.SourceContext {
	if !t.SourceContext.IsZero() {
		if file := r.Relativize(t.SourceContext.File); file != "" {
			return metadata.SourceContext{File: file}
		}
	}
	for _, m := range t.DeclaredMembers {
		if exposed != nil && !exposed(m) {
			continue
		}
		var method *metadata.Method
		switch v := m.(type) {
		case *metadata.Method:
			method = v
		case *metadata.Property:
			method = v.Getter
			if method == nil {
				method = v.Setter
			}
		}
		if method == nil || method.SourceContext.IsZero() {
			continue
		}
		if file := r.Relativize(method.SourceContext.File); strings.TrimSpace(file) != "" {
			return metadata.SourceContext{File: file}
		}
	}

	if file := r.FindTypeFile(t.FullName()); file != "" {
		return metadata.SourceContext{File: file}
	}
	level := slog.LevelInfo
	if r.warnOnMissing {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "Source code location not found", logfields.Name(t.FullName()))
	return metadata.SourceContext{}
}

// FindTypeFile searches the base path for a file named after a type, assuming folders
// follow namespaces and files follow type names. Nested types look for their outermost
// type; a generic arity suffix is dropped when the full name matches nothing. Search
// errors mean no file. The result is relative to the base path.
func (r *Resolver) FindTypeFile(fullTypeName string) string {
	if !r.Enabled() {
		return ""
	}
	parts := strings.Split(fullTypeName, ".")
	pattern := parts[len(parts)-1]
	parts = parts[:len(parts)-1]
	if i := strings.IndexByte(pattern, '+'); i >= 0 {
		pattern = pattern[:i]
	}

	matches, err := r.search(pattern)
	if err != nil {
		return ""
	}
	if len(matches) == 0 {
		if i := strings.IndexByte(pattern, '`'); i >= 0 {
			pattern = pattern[:i]
			if matches, err = r.search(pattern); err != nil {
				return ""
			}
		}
	}

	var found string
	switch {
	case len(matches) == 1:
		if hasSuffixFold(stem(matches[0]), pattern) {
			found = matches[0]
		}
	case len(matches) > 1:
		exact := matches[:0:0]
		for _, m := range matches {
			if hasSuffixFold(stem(m), pattern) {
				exact = append(exact, m)
			}
		}
		if len(exact) == 1 {
			found = exact[0]
			break
		}
		// Qualify with namespace folders until a single file remains.
		for len(parts) > 0 {
			pattern = parts[len(parts)-1] + "/" + pattern
			parts = parts[:len(parts)-1]
			var qualified []string
			for _, m := range exact {
				full := filepath.ToSlash(filepath.Join(filepath.Dir(m), stem(m)))
				if hasSuffixFold(full, pattern) {
					qualified = append(qualified, m)
				}
			}
			if len(qualified) == 1 {
				found = qualified[0]
				break
			}
			if len(qualified) == 0 {
				break
			}
		}
	}
	if found == "" {
		return ""
	}
	return r.Relativize(found)
}

func (r *Resolver) search(prefix string) ([]string, error) {
	var out []string
	lower := strings.ToLower(prefix)
	err := afero.Walk(r.fs, r.basePath, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasPrefix(strings.ToLower(info.Name()), lower) {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

// webSafe adjusts query escaping to the form-encoding used for source links, where
// !*() are left as they are and ~ is escaped.
var webSafe = strings.NewReplacer("%21", "!", "%2A", "*", "%28", "(", "%29", ")", "~", "%7E")

// EncodePath URL-encodes each segment of a relative file name and joins the segments
// with '/'.
func EncodePath(file string) string {
	segments := strings.FieldsFunc(file, func(r rune) bool { return r == '/' || r == '\\' })
	for i, s := range segments {
		segments[i] = webSafe.Replace(url.QueryEscape(s))
	}
	return path.Join(segments...)
}
