package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/l3montree-dev/vulnfeed/database/models"
	"golang.org/x/mod/semver"
)

var versionInvalidCharsRe = regexp.MustCompile(`[^0-9.]`)

// ConvertToSemver coerces the loose version strings found in dependency
// manifests and feed records into a canonical semver form that
// golang.org/x/mod/semver can order:
//
//   - "v" prefixes are dropped ("v1.2.3" -> "1.2.3")
//   - epoch prefixes are dropped ("2:1.2.3" -> "1.2.3")
//   - pre-release ("-rc1") and build metadata ("+build5") are preserved
//   - missing segments are padded ("1.2" -> "1.2.0")
//
// It fails on versions with non-numeric cores or more than three segments.
func ConvertToSemver(originalVersion string) (string, error) {
	if originalVersion == "" {
		return "", fmt.Errorf("empty version")
	}

	version := strings.TrimSpace(originalVersion)

	if idx := strings.Index(version, ":"); idx != -1 {
		version = version[idx+1:]
	}
	version = strings.TrimPrefix(version, "v")

	var buildMetadata, preRelease string
	if idx := strings.Index(version, "+"); idx != -1 {
		buildMetadata = version[idx+1:]
		version = version[:idx]
	}
	if idx := strings.Index(version, "-"); idx != -1 {
		preRelease = version[idx+1:]
		version = version[:idx]
	}

	if versionInvalidCharsRe.MatchString(version) {
		return "", fmt.Errorf("version core contains invalid characters: %s", version)
	}

	segments := strings.Split(version, ".")
	if len(segments) > 3 {
		return "", fmt.Errorf("version has more than 3 segments: %s", version)
	}
	for i, segment := range segments {
		if segment == "" {
			return "", fmt.Errorf("version has empty segment: %s", originalVersion)
		}
		trimmed := strings.TrimLeft(segment, "0")
		if trimmed == "" {
			trimmed = "0"
		}
		segments[i] = trimmed
	}
	for len(segments) < 3 {
		segments = append(segments, "0")
	}

	result := strings.Join(segments, ".")
	if preRelease != "" {
		result += "-" + preRelease
	}
	if buildMetadata != "" {
		result += "+" + buildMetadata
	}

	canonical := "v" + result
	if !semver.IsValid(canonical) {
		return "", fmt.Errorf("resulting version is not valid semver: %s", result)
	}
	return canonical, nil
}

// VersionInRange reports whether a declared dependency version falls inside
// the affected set of a component. Wildcard and range sentinels are treated
// as open intervals: a "*" version matches everything, a missing lower bound
// means "all versions before", a missing upper bound means "and every later
// version".
func VersionInRange(declared string, component models.AffectedComponent) bool {
	// a wildcard criteria version usually carries the actual interval in the
	// range fields ("all versions before X"); only a bound-less wildcard
	// matches everything
	if component.Version == models.WildcardVersion && !component.Ranged() {
		return true
	}

	target, err := ConvertToSemver(declared)
	if err != nil {
		return false
	}

	if !component.Ranged() {
		// exact comparison; "-" carries no version information at all
		if component.Version == "" || component.Version == "-" {
			return false
		}
		exact, err := ConvertToSemver(component.Version)
		if err != nil {
			return false
		}
		return semver.Compare(target, exact) == 0
	}

	if component.VersionStartIncluding != nil {
		start, err := ConvertToSemver(*component.VersionStartIncluding)
		if err != nil || semver.Compare(target, start) < 0 {
			return false
		}
	}
	if component.VersionEndIncluding != nil {
		end, err := ConvertToSemver(*component.VersionEndIncluding)
		if err != nil || semver.Compare(target, end) > 0 {
			return false
		}
	}
	if component.VersionEndExcluding != nil {
		end, err := ConvertToSemver(*component.VersionEndExcluding)
		if err != nil || semver.Compare(target, end) >= 0 {
			return false
		}
	}
	return true
}
