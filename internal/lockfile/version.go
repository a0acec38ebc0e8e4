package lockfile

import (
	"regexp"
	"strings"
)

const branchPlaceholder = "9999999"

var (
	aliasPattern     = regexp.MustCompile(`^([^,\s]+) +as +([^,\s]+)$`)
	stabilityFlag    = regexp.MustCompile(`(?i)@(?:stable|RC|beta|alpha|dev)$`)
	buildMetadata    = regexp.MustCompile(`^([^,\s+]+)\+[^\s]+$`)
	classicalVersion = regexp.MustCompile(`(?i)^v?(\d{1,5})(\.\d+)?(\.\d+)?(\.\d+)?` + modifierPattern + `$`)
	dateVersion      = regexp.MustCompile(`(?i)^v?(\d{4}(?:[.:-]?\d{2}){1,6}(?:[.:-]?\d{1,3}){0,2})` + modifierPattern + `$`)
	devSuffix        = regexp.MustCompile(`(?i)^(.*?)[.-]?dev$`)
	branchNumeric    = regexp.MustCompile(`(?i)^v?(\d+)(\.(?:\d+|[x*]))?(\.(?:\d+|[x*]))?(\.(?:\d+|[x*]))?$`)
	nonDigits        = regexp.MustCompile(`\D`)
)

const modifierPattern = `[._-]?(?:(stable|beta|b|RC|alpha|a|patch|pl|p)((?:[.-]?\d+)*)?)?([.-]?dev)?`

// NormalizeVersion 复刻 Composer VersionParser::normalize 的常见分支，
// 无法识别的版本原样返回。
func NormalizeVersion(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return ""
	}
	if m := aliasPattern.FindStringSubmatch(version); m != nil {
		version = m[1]
	}
	version = stabilityFlag.ReplaceAllString(version, "")

	lower := strings.ToLower(version)
	if lower == "master" || lower == "trunk" || lower == "default" {
		return "dev-" + version
	}
	if strings.HasPrefix(lower, "dev-") {
		return "dev-" + version[4:]
	}
	if m := buildMetadata.FindStringSubmatch(version); m != nil {
		version = m[1]
	}

	if m := classicalVersion.FindStringSubmatch(version); m != nil {
		normalized := m[1] + padComponent(m[2]) + padComponent(m[3]) + padComponent(m[4])
		return normalized + modifierSuffix(m[5], m[6], m[7])
	}
	if m := dateVersion.FindStringSubmatch(version); m != nil {
		normalized := nonDigits.ReplaceAllString(m[1], ".")
		return normalized + modifierSuffix(m[2], m[3], m[4])
	}
	if m := devSuffix.FindStringSubmatch(version); m != nil {
		return normalizeBranch(m[1])
	}
	return version
}

func padComponent(component string) string {
	if component == "" {
		return ".0"
	}
	return component
}

func modifierSuffix(stability, number, dev string) string {
	suffix := ""
	if stability != "" && !strings.EqualFold(stability, "stable") {
		suffix = "-" + expandStability(stability)
		if number != "" {
			suffix += strings.TrimLeft(number, ".-")
		}
	}
	if dev != "" {
		suffix += "-dev"
	}
	return suffix
}

func expandStability(stability string) string {
	switch strings.ToLower(stability) {
	case "a":
		return "alpha"
	case "b":
		return "beta"
	case "p", "pl":
		return "patch"
	case "rc":
		return "RC"
	default:
		return strings.ToLower(stability)
	}
}

// normalizeBranch 将 1.x 这类分支名转为 1.9999999.9999999.9999999-dev。
func normalizeBranch(name string) string {
	name = strings.TrimSpace(name)
	m := branchNumeric.FindStringSubmatch(name)
	if m == nil {
		return "dev-" + name
	}
	parts := make([]string, 0, 4)
	for i := 1; i <= 4; i++ {
		part := strings.TrimPrefix(m[i], ".")
		switch {
		case part == "":
			part = branchPlaceholder
		case part == "*" || strings.EqualFold(part, "x"):
			part = branchPlaceholder
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ".") + "-dev"
}
