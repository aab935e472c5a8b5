// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version houses the version information reported by posd in its
// startup banner and over RPC.
package version

import (
	"fmt"
	"strings"
)

const (
	// semanticAlphabet defines the allowed characters for the pre-release
	// portion of a semantic version string.
	semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

	// semanticBuildAlphabet defines the allowed characters for the build
	// portion of a semantic version string.
	semanticBuildAlphabet = semanticAlphabet + "."
)

// These constants define the application version and follow the semantic
// versioning 2.0.0 spec (http://semver.org/).
const (
	Major uint = 0
	Minor uint = 3
	Patch uint = 0
)

var (
	// PreRelease may be overridden during the build process with:
	// '-ldflags "-X github.com/posmint/posd/internal/version.PreRelease=foo"'
	PreRelease = "beta"

	// BuildMetadata may be overridden during the build process with:
	// '-ldflags "-X github.com/posmint/posd/internal/version.BuildMetadata=foo"'
	BuildMetadata = ""
)

// String returns the application version as a properly formed string per the
// semantic versioning 2.0.0 spec (http://semver.org/).  Invalid characters in
// the pre-release and build parts are dropped.
func String() string {
	version := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if pre := normalize(PreRelease, semanticAlphabet); pre != "" {
		version += "-" + pre
	}
	if build := normalize(BuildMetadata, semanticBuildAlphabet); build != "" {
		version += "+" + build
	}
	return version
}

// normalize returns str stripped of all characters not in alphabet.
func normalize(str, alphabet string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(alphabet, r) {
			return r
		}
		return -1
	}, str)
}
