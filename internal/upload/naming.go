package upload

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectName builds a unique object key: <purpose>/<unix-millis>-<suffix>.<ext>.
// Every call yields a new name.
func ObjectName(purpose, contentType string, now time.Time) string {
	purpose = strings.Trim(strings.ToLower(strings.TrimSpace(purpose)), "/")
	if purpose == "" {
		purpose = "misc"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("%s/%d-%s.%s", purpose, now.UnixMilli(), suffix, Extension(contentType))
}
