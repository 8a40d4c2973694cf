package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfidenceWeights mirrors matcher.Weights on disk. Zero fields keep the
// matcher's defaults.
type ConfidenceWeights struct {
	Tier struct {
		ExactExact float64 `yaml:"exact_exact"`
		ExactAbbr  float64 `yaml:"exact_abbr"`
		AbbrAbbr   float64 `yaml:"abbr_abbr"`
		Alias      float64 `yaml:"alias"`
	} `yaml:"tier"`
	TierWeight       float64 `yaml:"tier_weight"`
	Temporal         float64 `yaml:"temporal"`
	Complementarity  float64 `yaml:"complementarity"`
	CrossPair        float64 `yaml:"cross_pair"`
	Orientation      float64 `yaml:"orientation"`
	AmbiguityPenalty float64 `yaml:"ambiguity_penalty"`
	ConfirmThreshold float64 `yaml:"confirm_threshold"`
}

func LoadConfidenceWeights(path string) (ConfidenceWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConfidenceWeights{}, fmt.Errorf("read confidence weights: %w", err)
	}

	var w ConfidenceWeights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return ConfidenceWeights{}, fmt.Errorf("parse confidence weights: %w", err)
	}
	return w, nil
}
