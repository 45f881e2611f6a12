package configutil

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotenv loads variables from the given dotenv files (default ".env")
// into the process environment without overriding variables that are
// already set. Missing files are ignored.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := []string{}
	for _, f := range files {
		_, err := os.Stat(f)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		existing = append(existing, f)
	}
	if len(existing) == 0 {
		return nil
	}
	slog.Debug("loading dotenv", "files", existing)
	return godotenv.Load(existing...)
}

// OverrideFromEnv sets *target to the value of the environment variable
// `name` if it is set and non-empty.
func OverrideFromEnv(target *string, name string) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	*target = value
}
