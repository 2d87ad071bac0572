package cli

import (
	"fmt"
	"strings"

	"github.com/entreaty/entreaty/internal/rules"
)

// FailOnLevel threshold for failure
type FailOnLevel string

const (
	FailOnCritical FailOnLevel = "critical"
	FailOnModerate FailOnLevel = "moderate"
	FailOnInfo     FailOnLevel = "info"
)

// ParseFailOnLevel from string
func ParseFailOnLevel(s string) (FailOnLevel, error) {
	switch strings.ToLower(s) {
	case "critical":
		return FailOnCritical, nil
	case "moderate":
		return FailOnModerate, nil
	case "info":
		return FailOnInfo, nil
	default:
		return "", fmt.Errorf("invalid fail-on level: %s (use critical, moderate, or info)", s)
	}
}

// ShouldFail checks limits
func (f FailOnLevel) ShouldFail(severity rules.Severity) bool {
	switch f {
	case FailOnCritical:
		return severity == rules.SeverityCritical
	case FailOnModerate:
		return severity >= rules.SeverityModerate
	case FailOnInfo:
		return true // all severities fail
	default:
		return severity == rules.SeverityCritical
	}
}
