// Package manifest records the inputs and outputs of a build in a JSON file written
// next to the reflection file.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
)

// Suffix is appended to the output path to name its manifest.
const Suffix = ".manifest.json"

// PathFor returns the manifest path of an output file.
func PathFor(output string) string { return output + Suffix }

// BuildManifest represents a complete record of a build's inputs and outputs.
type BuildManifest struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Inputs    Inputs          `json:"inputs"`
	AddIns    []PluginVersion `json:"addins,omitempty"`
	Outputs   Outputs         `json:"outputs"`
	Status    string          `json:"status"`
	Duration  int64           `json:"duration_ms"`
}

// Inputs captures all inputs to the build.
type Inputs struct {
	Files      []FileInput `json:"files"`
	ConfigHash string      `json:"config_hash"`
	// SourceRevision is the HEAD commit of the repository containing the source base
	// path, empty when there is none.
	SourceRevision string `json:"source_revision,omitempty"`
}

// Input roles.
const (
	RoleAssembly  = "assembly"
	RoleReference = "reference"
)

// FileInput is one metadata description file.
type FileInput struct {
	Path   string `json:"path"`
	Role   string `json:"role"`
	SHA256 string `json:"sha256"`
}

// PluginVersion represents a versioned add-in used during a build.
type PluginVersion struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
}

// Outputs captures the reflection file and what it contains.
type Outputs struct {
	File          string `json:"file"`
	SHA256        string `json:"sha256"`
	Namespaces    int    `json:"namespaces"`
	Types         int    `json:"types"`
	Members       int    `json:"members"`
	MergedTypes   int    `json:"merged_types"`
	MergedMembers int    `json:"merged_members"`
}

// ToJSON serializes the manifest to JSON.
func (m *BuildManifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*BuildManifest, error) {
	var m BuildManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Hash computes a deterministic hash of the manifest's inputs and add-ins. Builds with
// equal hashes write the same reflection data.
func (m *BuildManifest) Hash() (string, error) {
	hashInput := struct {
		Files      []FileInput     `json:"files"`
		ConfigHash string          `json:"config_hash"`
		AddIns     []PluginVersion `json:"addins"`
	}{
		Files:      m.Inputs.Files,
		ConfigHash: m.Inputs.ConfigHash,
		AddIns:     m.AddIns,
	}

	data, err := json.Marshal(hashInput)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// Write stores the manifest as indented JSON.
func Write(fs afero.Fs, path string, m *BuildManifest) error {
	data, err := m.ToJSON()
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to encode manifest").Build()
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write manifest").
			WithContext("path", path).
			Build()
	}
	return nil
}

// Read loads a manifest.
func Read(fs afero.Fs, path string) (*BuildManifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read manifest").
			WithContext("path", path).
			Build()
	}
	m, err := FromJSON(data)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid manifest").
			WithContext("path", path).
			Build()
	}
	return m, nil
}

// HashFile returns the hex SHA-256 of a file.
func HashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to open file for hashing").
			WithContext("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to hash file").
			WithContext("path", path).
			Build()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SourceRevision returns the HEAD commit of the git repository containing path.
// It returns an empty string when path is not inside a repository or HEAD does not
// point at a commit yet.
func SourceRevision(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if stderrors.Is(err, git.ErrRepositoryNotExists) {
		return "", nil
	}
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to open source repository").
			WithContext("path", path).
			Build()
	}
	head, err := repo.Head()
	if err != nil {
		// An empty repository has no HEAD commit.
		return "", nil //nolint:nilerr // no revision to report
	}
	return head.Hash().String(), nil
}
