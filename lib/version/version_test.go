// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func withBuild(t *testing.T, commit, dirty string, settings []debug.BuildSetting) {
	t.Helper()
	savedCommit, savedDirty, savedRead := GitCommit, GitDirty, readBuildInfo
	t.Cleanup(func() {
		GitCommit, GitDirty, readBuildInfo = savedCommit, savedDirty, savedRead
	})
	GitCommit, GitDirty = commit, dirty
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		if settings == nil {
			return nil, false
		}
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestInfoFromLdflags(t *testing.T) {
	withBuild(t, "abc1234", "true", []debug.BuildSetting{{Key: "vcs.revision", Value: "ignored"}})

	info := Info()
	if !strings.HasPrefix(info, Version+" (abc1234-dirty, ") {
		t.Errorf("Info() = %q", info)
	}
	if Commit() != "abc1234" {
		t.Errorf("Commit() = %q, want abc1234", Commit())
	}
	full := Full()
	if !strings.Contains(full, "Commit: abc1234") || !strings.Contains(full, "Modified: true") {
		t.Errorf("Full() = %q, want commit and modified lines", full)
	}
}

func TestInfoFromBuildInfo(t *testing.T) {
	withBuild(t, "unknown", "false", []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
	})

	if Commit() != "0123456789ab" {
		t.Errorf("Commit() = %q, want 12-character revision", Commit())
	}
	if !strings.Contains(Info(), "(0123456789ab-dirty, ") {
		t.Errorf("Info() = %q", Info())
	}
}

func TestInfoWithoutBuildInfo(t *testing.T) {
	withBuild(t, "unknown", "false", nil)

	if Commit() != "unknown" {
		t.Errorf("Commit() = %q, want unknown", Commit())
	}
	full := Full()
	if !strings.Contains(full, "Go: go") || !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q", full)
	}
	if Short() != Version {
		t.Errorf("Short() = %q, want %q", Short(), Version)
	}
}
