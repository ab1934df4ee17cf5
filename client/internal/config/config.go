package config

import (
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"path/filepath"
)

const (
	fileName = ".paperstack.yml"
)

type (
	Config struct {
		Host      string `yaml:"host"`
		Principal string `yaml:"principal,omitempty"`
	}
)

// Path is the client config location, in the user's home directory when it is
// known and the working directory otherwise.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return fileName
	}
	return filepath.Join(home, fileName)
}

func Parse() (Config, error) {
	return parseFile(Path())
}

func parseFile(path string) (Config, error) {
	c := Config{}
	fi, err := os.Open(path)
	if err != nil {
		return c, err
	}

	defer func() {
		_ = fi.Close()
	}()

	value, err := io.ReadAll(fi)
	if err != nil {
		return c, err
	}

	if err = yaml.Unmarshal(value, &c); err != nil {
		return c, err
	}

	return c, nil
}

func SaveConfig(c Config) error {
	return saveFile(Path(), c)
}

func saveFile(path string, c Config) error {
	value, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, value, 0600)
}
