// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package buildinfo exposes the process identity reported by the HTTP
// front page, the operator console "version" command, and the startup
// banner.
package buildinfo

import "fmt"

// Overridden at build time via -ldflags:
//
//	go build -ldflags "-X github.com/tomtom215/monolith/internal/buildinfo.Version=1.2.0 \
//	  -X github.com/tomtom215/monolith/internal/buildinfo.Commit=$(git rev-parse --short HEAD)"
var (
	// Version is the semantic version of this build.
	Version = "0.1.0-dev"

	// Commit is the short VCS hash the binary was built from.
	Commit = "unknown"
)

// Name is the service name used in banners and reports.
const Name = "monolith"

// String returns the one-line identity, e.g. "monolith 0.1.0-dev (ab12cd3)".
func String() string {
	return fmt.Sprintf("%s %s (%s)", Name, Version, Commit)
}
