package sandbox

import (
	"sort"
	"sync"
)

// Optional backends. Each one registers itself from a file guarded by its
// build tag.
const (
	FeatureLandlock   = "landlock"
	FeatureFirejail   = "firejail"
	FeatureBubblewrap = "bubblewrap"
)

var buildTags = map[string]string{
	FeatureLandlock:   "sandbox_landlock",
	FeatureFirejail:   "sandbox_firejail",
	FeatureBubblewrap: "sandbox_bubblewrap",
}

var (
	featureMu sync.RWMutex
	features  = make(map[string]struct{})
)

func registerFeature(name string) {
	featureMu.Lock()
	features[name] = struct{}{}
	featureMu.Unlock()
}

// FeatureEnabled reports whether the optional backend was linked in.
func FeatureEnabled(name string) bool {
	featureMu.RLock()
	defer featureMu.RUnlock()
	_, ok := features[name]
	return ok
}

// Features lists the optional backends compiled into this binary.
func Features() []string {
	featureMu.RLock()
	out := make([]string, 0, len(features))
	for name := range features {
		out = append(out, name)
	}
	featureMu.RUnlock()
	sort.Strings(out)
	return out
}

// BuildTag returns the build tag that enables an optional backend.
func BuildTag(feature string) string {
	return buildTags[feature]
}

// requireFeature returns the NotAvailable error for a missing backend.
func requireFeature(feature, display string) error {
	if FeatureEnabled(feature) {
		return nil
	}
	return notCompiled(display, buildTags[feature])
}
