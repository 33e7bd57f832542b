package handlers

import (
	"net/http"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/rankshop/rankshop/internal/appid"
)

// Build metadata injected from main via SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"

	versionMu   sync.RWMutex
	appIdentity *appid.Identity
	features    Features
)

// Features summarises which optional storefront pieces are active.
type Features struct {
	StoreDriver      string   `json:"store_driver,omitempty"`
	RateLimitBackend string   `json:"rate_limit_backend,omitempty"`
	UploadBuckets    []string `json:"upload_buckets"`
	Webhook          bool     `json:"webhook"`
	ImageProxy       bool     `json:"image_proxy"`
	AdminPanel       bool     `json:"admin_panel"`
}

// SetVersionInfo records build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// SetAppIdentity sets the name reported by /version.
func SetAppIdentity(identity *appid.Identity) {
	versionMu.Lock()
	defer versionMu.Unlock()
	appIdentity = identity
}

// SetFeatures records the storefront wiring reported by /version.
func SetFeatures(f Features) {
	if f.UploadBuckets == nil {
		f.UploadBuckets = []string{}
	}
	versionMu.Lock()
	defer versionMu.Unlock()
	features = f
}

// VersionResponse is the /version body.
type VersionResponse struct {
	App          AppInfo  `json:"app"`
	Dependencies DepInfo  `json:"dependencies"`
	Features     Features `json:"features"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
	Platform  string `json:"platform"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	deps := crucible.GetVersion()

	versionMu.RLock()
	name := "rankshop"
	if appIdentity != nil && appIdentity.BinaryName != "" {
		name = appIdentity.BinaryName
	}
	current := features
	versionMu.RUnlock()
	if current.UploadBuckets == nil {
		current.UploadBuckets = []string{}
	}

	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      name,
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		Dependencies: DepInfo{
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
		},
		Features: current,
	})
}
