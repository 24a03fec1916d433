//go:build sandbox_bubblewrap

package sandbox

func init() {
	registerFeature(FeatureBubblewrap)
}
