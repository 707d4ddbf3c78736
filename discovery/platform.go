package discovery

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ethereum-optimism/infra/op-harness/markers"
)

// Platform identifies the host a test run targets
type Platform struct {
	OS   string
	Arch string
}

// CurrentPlatform returns the platform the process runs on
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// matches accepts GOOS, GOARCH or GOOS/GOARCH names, case-insensitively
func (p Platform) matches(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	return name == strings.ToLower(p.OS) ||
		name == strings.ToLower(p.Arch) ||
		name == strings.ToLower(p.String())
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Supports evaluates a platform marker. When the platform is not supported the
// marker's reason, or a generated one, is returned.
func (p Platform) Supports(inst markers.Instance) (bool, string) {
	reason := inst.StringParam(markers.ParamReason)
	if include := splitList(inst.StringParam(markers.ParamInclude)); len(include) > 0 {
		supported := false
		for _, name := range include {
			if p.matches(name) {
				supported = true
				break
			}
		}
		if !supported {
			if reason == "" {
				reason = fmt.Sprintf("Only supported on %s", strings.Join(include, ","))
			}
			return false, reason
		}
	}
	for _, name := range splitList(inst.StringParam(markers.ParamExclude)) {
		if p.matches(name) {
			if reason == "" {
				reason = fmt.Sprintf("Not supported on %s", name)
			}
			return false, reason
		}
	}
	return true, ""
}
