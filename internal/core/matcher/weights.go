package matcher

import (
	"math"

	"github.com/charleschow/market-matcher/internal/config"
)

// MatchTier is the key family a candidate was found under.
type MatchTier string

const (
	TierExactExact MatchTier = "EXACT_EXACT"
	TierExactAbbr  MatchTier = "EXACT_ABBR"
	TierAbbrAbbr   MatchTier = "ABBR_ABBR"
	TierAlias      MatchTier = "ALIAS"
)

// Validation names a check recorded in Result.Validations.
type Validation string

const (
	ValidationSport           Validation = "sport"
	ValidationTemporal        Validation = "temporal"
	ValidationComplementarity Validation = "complementarity"
	ValidationCrossPair       Validation = "cross_pair"
	ValidationOrientation     Validation = "orientation"
)

// validationOrder fixes the order validations are reported in.
var validationOrder = []Validation{
	ValidationSport, ValidationTemporal, ValidationComplementarity,
	ValidationCrossPair, ValidationOrientation,
}

// Weights is the confidence formula:
//
//	TierScore[tier]*TierWeight + sum(weight of each passed validation) - ambiguity
//
// clamped to [0,1]. The defaults sum to 1 for an EXACT_EXACT match with
// every validation passed.
type Weights struct {
	TierScore        map[MatchTier]float64
	TierWeight       float64
	Temporal         float64
	Complementarity  float64
	CrossPair        float64
	Orientation      float64
	AmbiguityPenalty float64
	ConfirmThreshold float64
}

func DefaultWeights() Weights {
	return Weights{
		TierScore: map[MatchTier]float64{
			TierExactExact: 1.0,
			TierExactAbbr:  0.85,
			TierAbbrAbbr:   0.7,
			TierAlias:      0.5,
		},
		TierWeight:       0.4,
		Temporal:         0.2,
		Complementarity:  0.15,
		CrossPair:        0.15,
		Orientation:      0.1,
		AmbiguityPenalty: 0.2,
		ConfirmThreshold: 0.8,
	}
}

// WeightsFromConfig overlays the non-zero fields of a weights file onto
// the defaults.
func WeightsFromConfig(c config.ConfidenceWeights) Weights {
	w := DefaultWeights()
	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	setTier := func(t MatchTier, v float64) {
		if v != 0 {
			w.TierScore[t] = v
		}
	}
	setTier(TierExactExact, c.Tier.ExactExact)
	setTier(TierExactAbbr, c.Tier.ExactAbbr)
	setTier(TierAbbrAbbr, c.Tier.AbbrAbbr)
	setTier(TierAlias, c.Tier.Alias)
	set(&w.TierWeight, c.TierWeight)
	set(&w.Temporal, c.Temporal)
	set(&w.Complementarity, c.Complementarity)
	set(&w.CrossPair, c.CrossPair)
	set(&w.Orientation, c.Orientation)
	set(&w.AmbiguityPenalty, c.AmbiguityPenalty)
	set(&w.ConfirmThreshold, c.ConfirmThreshold)
	return w
}

func (w Weights) validationWeight(v Validation) float64 {
	switch v {
	case ValidationTemporal:
		return w.Temporal
	case ValidationComplementarity:
		return w.Complementarity
	case ValidationCrossPair:
		return w.CrossPair
	case ValidationOrientation:
		return w.Orientation
	}
	return 0
}

// score is rounded to four places so identical inputs give identical output
// regardless of summation order.
func (w Weights) score(tier MatchTier, passed map[Validation]bool, ambiguous bool) float64 {
	s := w.TierScore[tier] * w.TierWeight
	for _, v := range validationOrder {
		if passed[v] {
			s += w.validationWeight(v)
		}
	}
	if ambiguous {
		s -= w.AmbiguityPenalty
	}
	s = math.Max(0, math.Min(1, s))
	return math.Round(s*1e4) / 1e4
}
