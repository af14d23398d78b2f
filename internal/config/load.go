package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// EnvManagedConfigPath is the environment variable a loader override may use
// to point at an MDM-managed config file (spec §6).
const EnvManagedConfigPath = "CODEX_MANAGED_CONFIG_PATH"

// LoaderOverrides lets callers (tests, CLI flags) override where managed
// config is read from.
type LoaderOverrides struct {
	ManagedConfigPath string
}

// LoadFileLayer reads and parses a TOML file into a Layer tagged with
// source. Returns (Layer{}, false, nil) if the file does not exist.
func LoadFileLayer(path string, source Source) (Layer, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Layer{}, false, nil
		}
		return Layer{}, false, err
	}

	var value map[string]any
	if err := toml.Unmarshal(data, &value); err != nil {
		return Layer{}, false, err
	}

	raw := string(data)
	layer := NewLayer(source, value)
	layer.RawTOML = &raw
	return layer, true, nil
}

// LoadLayers assembles the standard layer set for a single-user CLI process:
// Mdm (via EnvManagedConfigPath or overrides), System, Project (root->cwd),
// User, in precedence order. codexHome is the base ~/.codex directory;
// projectDirs is the list of .codex-bearing ancestor directories from
// workspace root to cwd, already ordered root-first by the caller.
func LoadLayers(codexHome string, projectDirs []string, overrides LoaderOverrides) ([]Layer, error) {
	var layers []Layer

	managedPath := overrides.ManagedConfigPath
	if managedPath == "" {
		managedPath = os.Getenv(EnvManagedConfigPath)
	}
	if managedPath != "" {
		if l, ok, err := LoadFileLayer(managedPath, SourceMdm); err != nil {
			return nil, err
		} else if ok {
			layers = append(layers, l)
		}
	}

	systemPath := filepath.Join(codexHome, "managed-config.toml")
	if l, ok, err := LoadFileLayer(systemPath, SourceSystem); err != nil {
		return nil, err
	} else if ok {
		layers = append(layers, l)
	}

	for _, dir := range projectDirs {
		p := filepath.Join(dir, ".codex", "config.toml")
		if l, ok, err := LoadFileLayer(p, SourceProject); err != nil {
			return nil, err
		} else if ok {
			l.ProjectPath = dir
			layers = append(layers, l)
		}
	}

	userPath := filepath.Join(codexHome, "config.toml")
	if l, ok, err := LoadFileLayer(userPath, SourceUser); err != nil {
		return nil, err
	} else if ok {
		layers = append(layers, l)
	}

	return layers, nil
}
