// Package main implements the buildstamp CLI tool.
//
// The buildstamp tool keeps a four-component build version (major.minor.patch.build)
// in a canonical text file (default "./VERSION") and updates it on build events:
// a full build increments the patch component and renders the version into every
// configured output target, an incremental build increments the build component.
//
// Command Usage:
//
//	buildstamp [flags] <command>
//
// Commands:
//
//	run:     Fires a full build: bumps patch, writes output targets, persists the
//	         version file and, when configured, commits and tags it.
//	watch:   Watches source paths and fires an incremental build (build + 1) after
//	         every burst of changes, until interrupted.
//	show:    Prints the current version components as a table.
//	version: Prints the CLI version.
//
// Flags:
//
//	-c, --config:    Configuration file. Defaults to buildstamp.{json,yaml,yml} in the
//	                 working directory when present.
//	--source:        Canonical version file, overriding the configured source.
//	--log-level:     trace, debug, info, warn or error.
//	--strict:        (run) Exit non-zero when any output target fails.
//
// Configuration:
//
//	source: VERSION
//	input:
//	  url: https://ci.example.com/build-number   # optional remote build number
//	  timeout: 10s
//	  incremental: false                         # also fetch on watch builds
//	output:
//	  - { type: json, file: dist/version.json }
//	  - { type: module, file: src/version.ts }
//	  - { type: go, file: internal/version/version.go }
//	  - { type: packageManager, dir: ., manifest: package.json }
//	  - { type: s3, bucket: releases, key: app/version.json }
//	git: { commit: true, tag: true }
//	watch: { paths: [src], debounce: 500ms }
//
// Locking:
//
//	Cycles on the same version file never overlap, in-process or across processes.
//	The lock file lives in the system temp directory (buildstamp-<hash>.lock), not in
//	the project, so there is nothing to commit or ignore.
//
// Examples:
//
//	# Bump the patch component (e.g. 1.2.3.4 → 1.2.4.4) and write outputs
//	buildstamp run
//
//	# Bump the build component on every change under ./src
//	buildstamp watch src
//
//	# Use a different version file
//	buildstamp --source build/VERSION show
package main
