package models

import (
	"fmt"
	"strings"
)

// Distribution identifies one regional client distribution.
type Distribution string

const (
	DistributionUS Distribution = "us"
	DistributionDE Distribution = "de"
	DistributionPT Distribution = "pt"
	DistributionES Distribution = "es"
	DistributionGA Distribution = "ga"
)

var validDistributions = map[Distribution]struct{}{
	DistributionUS: {},
	DistributionDE: {},
	DistributionPT: {},
	DistributionES: {},
	DistributionGA: {},
}

// Distributions lists every known distribution in stable order.
func Distributions() []Distribution {
	return []Distribution{
		DistributionUS,
		DistributionDE,
		DistributionPT,
		DistributionES,
		DistributionGA,
	}
}

// ParseDistribution validates a raw distribution code.
func ParseDistribution(raw string) (Distribution, error) {
	value := Distribution(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("distribution is required")
	}
	if _, ok := validDistributions[value]; !ok {
		return "", fmt.Errorf("invalid distribution: %s", value)
	}
	return value, nil
}

func (d Distribution) String() string {
	return string(d)
}
