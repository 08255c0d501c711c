// Package rules loads and resolves per-directory build_rules.star override
// scripts. The scripts are written in Starlark so user configuration stays
// sandboxed and deterministic; a script declares flag globals (generic,
// continue, no-recurse, dependencies, process-project-files) and optional
// hook functions (prebuild, build, postbuild, clean) that the directory
// walker invokes.
package rules
