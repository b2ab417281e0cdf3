// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package version

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.Contains(ua, "/") {
		t.Errorf("UserAgent() = %q, want a name/version pair", ua)
	}
	if !strings.Contains(ua, "(+https://") {
		t.Errorf("UserAgent() = %q, want an information page URL", ua)
	}
}

func TestVersionString(t *testing.T) {
	s := Version().String()
	if !strings.Contains(s, CmdName()) {
		t.Errorf("Version().String() = %q, want it to contain %q", s, CmdName())
	}
}
