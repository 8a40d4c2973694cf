package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TeamEntry is one team in the alias table file.
type TeamEntry struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	City          string   `yaml:"city"`
	Mascot        string   `yaml:"mascot"`
	Abbreviations []string `yaml:"abbreviations"`
	Aliases       []string `yaml:"aliases"`
}

// AliasFile is the on-disk, versioned alias table:
//
//	version: "2025-11-01"
//	sports:
//	  nfl:
//	    - id: BUF
//	      name: Buffalo Bills
//	      city: Buffalo
//	      mascot: Bills
//	      abbreviations: [BUF]
type AliasFile struct {
	Version string                 `yaml:"version"`
	Sports  map[string][]TeamEntry `yaml:"sports"`
}

func LoadAliasFile(path string) (AliasFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AliasFile{}, fmt.Errorf("read alias table: %w", err)
	}
	return ParseAliasFile(data)
}

func ParseAliasFile(data []byte) (AliasFile, error) {
	var f AliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return AliasFile{}, fmt.Errorf("parse alias table: %w", err)
	}
	if len(f.Sports) == 0 {
		return AliasFile{}, fmt.Errorf("parse alias table: no sports defined")
	}
	return f, nil
}
