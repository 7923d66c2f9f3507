package config

import "fmt"

// Set at build time through -ldflags "-X github.com/chapool/wallet-core/internal/config.Commit=...".
var (
	ModuleName = "wallet-core"
	Commit     = "< 40 chars git commit hash via ldflags >"
	BuildDate  = "1970-01-01T00:00:00+00:00"
)

func GetFormattedBuildArgs() string {
	return fmt.Sprintf("%v @ %v (%v)", ModuleName, Commit, BuildDate)
}
