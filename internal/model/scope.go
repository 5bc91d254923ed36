// Package model holds the shared domain types for portfolio temperature scoring.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Scope identifies an emissions scope category a score or target applies to.
type Scope string

const (
	ScopeS1     Scope = "s1"
	ScopeS1S2   Scope = "s1s2"
	ScopeS3     Scope = "s3"
	ScopeS1S2S3 Scope = "s1s2s3"
)

// BaseScope is a single emissions scope (S1, S2 or S3) used to express
// target coverage. Composite Scope values expand to sets of these.
type BaseScope string

const (
	BaseS1 BaseScope = "s1"
	BaseS2 BaseScope = "s2"
	BaseS3 BaseScope = "s3"
)

// ParseScope converts a string into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeS1:
		return ScopeS1, nil
	case ScopeS1S2:
		return ScopeS1S2, nil
	case ScopeS3:
		return ScopeS3, nil
	case ScopeS1S2S3:
		return ScopeS1S2S3, nil
	}
	return "", eris.Wrapf(ErrConfiguration, "scope: unknown value %q", s)
}

// Components returns the base scopes a Scope is composed of.
func (s Scope) Components() []BaseScope {
	switch s {
	case ScopeS1:
		return []BaseScope{BaseS1}
	case ScopeS1S2:
		return []BaseScope{BaseS1, BaseS2}
	case ScopeS3:
		return []BaseScope{BaseS3}
	case ScopeS1S2S3:
		return []BaseScope{BaseS1, BaseS2, BaseS3}
	}
	return nil
}

// ParseBaseScope converts a string into a BaseScope.
func ParseBaseScope(s string) (BaseScope, error) {
	switch BaseScope(strings.ToLower(strings.TrimSpace(s))) {
	case BaseS1:
		return BaseS1, nil
	case BaseS2:
		return BaseS2, nil
	case BaseS3:
		return BaseS3, nil
	}
	return "", eris.Wrapf(ErrConfiguration, "scope coverage: unknown value %q", s)
}

// ParseCoverage converts a "+"-separated coverage list such as "s1+s2"
// into base scopes.
func ParseCoverage(s string) ([]BaseScope, error) {
	parts := strings.Split(s, "+")
	coverage := make([]BaseScope, 0, len(parts))
	for _, part := range parts {
		base, err := ParseBaseScope(part)
		if err != nil {
			return nil, err
		}
		coverage = append(coverage, base)
	}
	return coverage, nil
}

// TimeFrame is the horizon bucket a target's year is evaluated over.
type TimeFrame string

const (
	TimeFrameShort TimeFrame = "short"
	TimeFrameMid   TimeFrame = "mid"
	TimeFrameLong  TimeFrame = "long"
)

// Horizon windows in years from a target's base year. A target with
// horizon h qualifies for SHORT when h < 5, MID when 5 <= h <= 15 and
// LONG when h > 15.
const (
	HorizonShortMax = 5
	HorizonMidMax   = 15
	HorizonLongMax  = 30
)

// ParseTimeFrame converts a string into a TimeFrame.
func ParseTimeFrame(s string) (TimeFrame, error) {
	switch TimeFrame(strings.ToLower(strings.TrimSpace(s))) {
	case TimeFrameShort:
		return TimeFrameShort, nil
	case TimeFrameMid:
		return TimeFrameMid, nil
	case TimeFrameLong:
		return TimeFrameLong, nil
	}
	return "", eris.Wrapf(ErrConfiguration, "time frame: unknown value %q", s)
}

// Contains reports whether a target horizon (target year minus base year)
// falls inside the time frame's window.
func (t TimeFrame) Contains(horizonYears int) bool {
	switch t {
	case TimeFrameShort:
		return horizonYears > 0 && horizonYears < HorizonShortMax
	case TimeFrameMid:
		return horizonYears >= HorizonShortMax && horizonYears <= HorizonMidMax
	case TimeFrameLong:
		return horizonYears > HorizonMidMax && horizonYears <= HorizonLongMax
	}
	return false
}
