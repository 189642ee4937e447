package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	"github.com/joho/godotenv"
)

func GetEnvWithDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadDotEnv loads the first existing file of paths into the environment,
// without overriding variables that are already set. It returns the loaded
// path, or an empty string when none of the files exist.
func LoadDotEnv(paths ...string) (string, error) {
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", motmedelErrors.NewWithTrace(fmt.Errorf("os stat: %w", err), path)
		}

		if err := godotenv.Load(path); err != nil {
			return "", motmedelErrors.NewWithTrace(fmt.Errorf("godotenv load: %w", err), path)
		}

		return path, nil
	}

	return "", nil
}
