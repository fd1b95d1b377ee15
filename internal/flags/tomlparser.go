package flags

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TomlParser loads a TOML file the same way YamlParser loads YAML: tables are matched to commands and option
// groups, and their keys to the yaml tags of the group's options.
type TomlParser struct {
	yaml *YamlParser
}

func NewTomlParser(p *flags.Parser) *TomlParser {
	return &TomlParser{
		yaml: NewYamlParser(p),
	}
}

// ParseFile parses flags from a toml formatted file
func (t *TomlParser) ParseFile(filename string) error {
	body, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		if err := body.Close(); err != nil {
			log.Errorf("Could not close %s: %v", filename, err)
		}
	}()

	return t.ParseReader(body)
}

// ParseReader parses flags from a toml stream
func (t *TomlParser) ParseReader(config io.Reader) error {
	obj := make(map[string]interface{})
	meta, err := toml.NewDecoder(config).Decode(&obj)
	if err != nil {
		return errors.Wrapf(err, "Could not decode configuration")
	}
	log.Tracef("Configuration keys: %v", meta.Keys())
	return t.yaml.parseSegment(obj)
}

// ParseConfigFile picks the configuration parser by the file's extension. Anything else than .toml is read as
// YAML.
func ParseConfigFile(p *flags.Parser, filename string) error {
	if strings.EqualFold(filepath.Ext(filename), ".toml") {
		return NewTomlParser(p).ParseFile(filename)
	}
	return NewYamlParser(p).ParseFile(filename)
}
