package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	orig := Version
	Version = "v1.2.3"
	t.Cleanup(func() { Version = orig })

	info := Get()
	if info.Version != "v1.2.3" || info.GoVersion == "" {
		t.Errorf("Get() = %+v", info)
	}
	if s := info.String(); !strings.HasPrefix(s, "sonarscope v1.2.3 (") {
		t.Errorf("String() = %q", s)
	}
}
