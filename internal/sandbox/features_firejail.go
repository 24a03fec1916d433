//go:build sandbox_firejail

package sandbox

func init() {
	registerFeature(FeatureFirejail)
}
