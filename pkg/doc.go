// Package buildstamp stamps build versions of the form major.minor.patch.build.
//
// It provides functionalities for:
//   - Reading and writing a canonical version file ("1.2.3.4\n"), recovering to 0.0.0.0
//     when the file does not exist yet.
//   - Optionally taking the build component from a remote HTTP endpoint that answers
//     with JSON ({"build": 42}) or plain text ("42").
//   - Incrementing the patch component on a full build and the build component on an
//     incremental (watch) build.
//   - Rendering the version into output targets: text, json, module (ES/TypeScript),
//     go, yaml, a package manifest (package.json, Cargo.toml, ...) and S3 objects.
//   - Committing and tagging the result with git after a full build.
//
// A Controller runs one cycle per lifecycle event. Build tools integrate through the
// Host interface: Controller.Apply registers a hook for each event, and the hook
// calls its completion continuation exactly once with the cycle's outcome.
//
// Usage Example:
//
//	store := buildstamp.NewStore("VERSION")
//	ctrl := buildstamp.NewController(store, buildstamp.WithTargets(
//	    buildstamp.Target{Type: buildstamp.TargetJSON, File: "dist/version.json"},
//	))
//	res, err := ctrl.FullBuild(context.Background())
//	if err != nil {
//	    log.Fatalf("version stamp failed: %v", err)
//	}
//	log.Println("stamped", res.Record)
//
// The buildstamp command in the module root exposes the same operations as run, watch
// and show subcommands.
package buildstamp
