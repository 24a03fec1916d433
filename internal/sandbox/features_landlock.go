//go:build sandbox_landlock && linux

package sandbox

func init() {
	registerFeature(FeatureLandlock)
}
