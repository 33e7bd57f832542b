package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rankshop/rankshop/internal/core"
)

var (
	javaUsername    = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)
	bedrockUsername = regexp.MustCompile(`^\.?[A-Za-z0-9_ ]{3,16}$`)
)

// NormalizeUsername trims a player name and checks it against the naming
// rules of the platform.
func NormalizeUsername(platform core.Platform, raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: username is required", ErrInvalidUsername)
	}

	switch platform {
	case core.PlatformJava:
		if !javaUsername.MatchString(name) {
			return "", fmt.Errorf("%w: Java names are 3-16 letters, digits or underscores", ErrInvalidUsername)
		}
	case core.PlatformBedrock:
		if !bedrockUsername.MatchString(name) {
			return "", fmt.Errorf("%w: Bedrock names are 3-16 letters, digits, spaces or underscores", ErrInvalidUsername)
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, platform)
	}
	return name, nil
}
