package command

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the coredb CLI's on-disk configuration, decoded from the
// YAML file named by -config. Every field has a usable zero value so
// an absent config file is not an error.
type Config struct {
	// DataFile is the database file path, or ":memory:" for a
	// throwaway in-memory database. Defaults to "coredb.db".
	DataFile string `yaml:"data_file"`
	// PageSize is the B-tree page size, used only when DataFile is
	// ":memory:"; file-backed databases use the default page size.
	PageSize int `yaml:"page_size"`
	// LogLevel is a logrus level name: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

func defaultConfig() *Config {
	return &Config{
		DataFile: "coredb.db",
		PageSize: 4096,
		LogLevel: "info",
	}
}

// loadConfig reads and decodes the YAML file at path, falling back to
// defaultConfig when path is empty (no -config flag given). A path
// that is given but unreadable or malformed is an error: an explicit
// -config flag is a promise the file is there.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
