package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/academic-records/records-hub/internal/domain/course"
	"github.com/academic-records/records-hub/internal/domain/grading"
)

// GradingConfig holds the configurable grading rules.
type GradingConfig struct {
	// PassingThreshold - minimum approved average, inclusive (default 6.0).
	PassingThreshold float64

	// RecoveryFloor - minimum average for "second season" (default 5.0).
	RecoveryFloor float64

	RecoveryEnabled bool

	// Splits - discipline/behavior weights per course formula.
	// GRADING_WEIGHTS="CAS:0.9/0.1,CGS:0.9/0.1"
	Splits map[course.Formula]grading.Split

	// Concepts - concept breakpoints, highest first.
	// GRADING_CONCEPTS="9:excellent,8:very good,7:good,6:regular,0:bad"
	Concepts []grading.ConceptBand
}

func loadGradingConfig() (GradingConfig, error) {
	defaults := grading.DefaultPolicy()

	cfg := GradingConfig{
		PassingThreshold: getEnvFloat("GRADING_PASSING_THRESHOLD", defaults.PassingThreshold),
		RecoveryFloor:    getEnvFloat("GRADING_RECOVERY_FLOOR", defaults.RecoveryFloor),
		RecoveryEnabled:  getEnvBool("GRADING_RECOVERY_ENABLED", defaults.RecoveryEnabled),
		Splits:           defaults.Splits,
		Concepts:         defaults.Concepts,
	}

	if raw := getEnv("GRADING_WEIGHTS", ""); raw != "" {
		splits, err := ParseWeights(raw)
		if err != nil {
			return cfg, err
		}
		cfg.Splits = splits
	}

	if raw := getEnv("GRADING_CONCEPTS", ""); raw != "" {
		concepts, err := ParseConcepts(raw)
		if err != nil {
			return cfg, err
		}
		cfg.Concepts = concepts
	}

	return cfg, nil
}

// Policy converts the configuration into grading rules.
func (g GradingConfig) Policy() grading.Policy {
	return grading.Policy{
		PassingThreshold: g.PassingThreshold,
		RecoveryFloor:    g.RecoveryFloor,
		RecoveryEnabled:  g.RecoveryEnabled,
		Splits:           g.Splits,
		Concepts:         g.Concepts,
	}
}

// ParseWeights parses "CAS:0.9/0.1,CGS:0.8/0.2".
// Formulas left out have no weighting and are rejected by the calculator.
func ParseWeights(raw string) (map[course.Formula]grading.Split, error) {
	splits := make(map[course.Formula]grading.Split)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		name, weights, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("GRADING_WEIGHTS: %q must be FORMULA:discipline/behavior", item)
		}
		formula, err := course.ParseFormula(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("GRADING_WEIGHTS: %w", err)
		}

		d, b, ok := strings.Cut(weights, "/")
		if !ok {
			return nil, fmt.Errorf("GRADING_WEIGHTS: %q must be discipline/behavior", weights)
		}
		dw, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
		if err != nil {
			return nil, fmt.Errorf("GRADING_WEIGHTS: discipline weight for %s: %w", formula, err)
		}
		bw, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
		if err != nil {
			return nil, fmt.Errorf("GRADING_WEIGHTS: behavior weight for %s: %w", formula, err)
		}

		split := grading.Split{Discipline: dw, Behavior: bw}
		if !split.IsValid() {
			return nil, fmt.Errorf("GRADING_WEIGHTS: weights for %s must be non-negative and sum to 1", formula)
		}
		splits[formula] = split
	}

	if len(splits) == 0 {
		return nil, fmt.Errorf("GRADING_WEIGHTS: no formulas configured")
	}
	return splits, nil
}

// ParseConcepts parses "9:excellent,8:very good,0:bad".
func ParseConcepts(raw string) ([]grading.ConceptBand, error) {
	var bands []grading.ConceptBand
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		minRaw, concept, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(concept) == "" {
			return nil, fmt.Errorf("GRADING_CONCEPTS: %q must be min:concept", item)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(minRaw), 64)
		if err != nil {
			return nil, fmt.Errorf("GRADING_CONCEPTS: %q: %w", item, err)
		}
		if min < 0 || min > 10 {
			return nil, fmt.Errorf("GRADING_CONCEPTS: breakpoint %.3f out of range", min)
		}
		bands = append(bands, grading.ConceptBand{Min: min, Concept: strings.TrimSpace(concept)})
	}

	if len(bands) == 0 {
		return nil, fmt.Errorf("GRADING_CONCEPTS: no concepts configured")
	}
	return bands, nil
}
