package configutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalName returns the override file of a config file name,
// "milesfare.json5" becomes "milesfare.local.json5".
func LocalName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// readLayer decodes the json5 file at path over out, fields absent from the
// file keep their value. It reports false when the file does not exist.
func readLayer[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}

	var layer T
	err = json5.Unmarshal(contents, &layer)
	if err != nil {
		return false, err
	}
	err = mergo.Merge(out, layer, mergo.WithOverride)
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadOver layers `name` and then its local override (see LocalName) over
// base. Zero values in a file never replace a value from a lower layer.
// When neither file exists it returns base and os.ErrNotExist.
func ReadOver[T any](name string, base T) (T, error) {
	out := base
	found := false
	for _, path := range []string{name, LocalName(name)} {
		ok, err := readLayer(path, &out)
		if err != nil {
			return base, err
		}
		if ok && path != name {
			slog.Info("merging config with local overrides", "local", path)
		}
		found = found || ok
	}
	if !found {
		return base, os.ErrNotExist
	}
	return out, nil
}

func ReadConfig[T any](name string) (T, error) {
	var zero T
	return ReadOver(name, zero)
}

// ReadRecursively searches for `name` from the working directory up to the
// filesystem root and reads the first one found.
func ReadRecursively[T any](name string) (T, error) {
	var zero T
	current, err := os.Getwd()
	if err != nil {
		return zero, err
	}
	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return zero, err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return zero, os.ErrNotExist
		}
		current = parent
	}
}
