package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
)

// envFiles are loaded in order. Variables already set in the process environment, or
// by an earlier file, are not overwritten.
var envFiles = []string{".env", ".env.local"}

func loadEnvFiles(dir string) error {
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "failed to load environment file").
				WithContext("path", path).
				Build()
		}
	}
	return nil
}
