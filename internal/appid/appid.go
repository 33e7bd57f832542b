// Package appid describes the identity of the rankshop binary: its name,
// environment prefix and config directory name.
package appid

import (
	"context"
	"os"
	"strings"
	"sync"
)

// EnvBinaryName overrides the binary name used for config and data paths.
const EnvBinaryName = "RANKSHOP_APP_NAME"

// Identity holds the names used to derive paths, env vars and metric names.
type Identity struct {
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Vendor      string
	Description string
}

var (
	current *Identity
	mu      sync.Mutex
)

func defaultIdentity() Identity {
	return Identity{
		BinaryName:  "rankshop",
		ConfigName:  "rankshop",
		EnvPrefix:   "RANKSHOP_",
		Vendor:      "rankshop",
		Description: "Minecraft rank storefront",
	}
}

// Get returns the process identity. The first call resolves it; later calls
// return the cached value.
func Get(ctx context.Context) (*Identity, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		return current, nil
	}

	identity := defaultIdentity()
	if name := strings.TrimSpace(os.Getenv(EnvBinaryName)); name != "" {
		identity.BinaryName = name
		identity.ConfigName = name
	}
	current = &identity
	return current, nil
}

// Reset clears the cached identity.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
}

// Prefix returns EnvPrefix guaranteed to end with an underscore.
func (i *Identity) Prefix() string {
	if i == nil {
		return "RANKSHOP_"
	}
	prefix := i.EnvPrefix
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// TelemetryNamespace returns the metric name prefix for this binary.
func (i *Identity) TelemetryNamespace() string {
	if i == nil || strings.TrimSpace(i.BinaryName) == "" {
		return "rankshop"
	}
	return strings.ReplaceAll(strings.ToLower(i.BinaryName), "-", "_")
}
