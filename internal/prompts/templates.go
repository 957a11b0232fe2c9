package prompts

const buildTemplate = `# Build Guidance

## Project
- Project path: {{.project_path}}
- Target platform: {{.target_platform}}
- Build options: {{.build_options}}
- Output path: {{or .output_path "default build location"}}

## Before building
1. Run ` + "`project_scan`" + ` to confirm the project compiles and its layout is valid.
2. Run ` + "`asset_audit`" + ` to catch missing or broken assets.
3. Check that the scenes you need are enabled in the build scene list
   (see the unity://scenes/{{.project_path}} resource).

## Building
Call ` + "`build_run`" + ` with:
- project_path: "{{.project_path}}"
- target_platform: "{{.target_platform}}"
- build_options: "{{.build_options}}"
{{- if .output_path}}
- output_path: "{{.output_path}}"
{{- end}}

Builds can take a long time. Pass timeout_minutes when the default is too short.

## When the build fails
- Compilation errors: read the editor log (unity://logs/{{.project_path}}) and fix scripts first.
- Import errors: reimport the affected assets and recheck their import settings.
- Platform errors: confirm the {{.target_platform}} module is installed and its player settings are set.
- Large output: use ` + "`perf_profile`" + ` and remove unused assets.

## Checklist
- Editor version matches the project (unity://project/{{.project_path}})
- Scripts compile without errors
- Required packages are installed
- Enough disk space at the output location
`

const debugTemplate = `# {{title .issue_type}} Debugging Guide

## Issue
- Project path: {{.project_path}}
- Issue type: {{.issue_type}}
- Error message: {{or .error_message "none provided"}}
- Context: {{or .context "general debugging"}}

## Approach
1. Reproduce: write down the exact steps, the expected result and what happened instead.
2. Isolate: reduce to the smallest scene or script that still shows the problem.
3. Gather: run ` + "`project_scan`" + `, read unity://logs/{{.project_path}} and run ` + "`asset_audit`" + `.
4. Fix the root cause and rerun ` + "`test_editmode`" + ` and ` + "`test_playmode`" + `.

## Useful tools
- ` + "`scene_validate`" + ` finds missing references in the open scene.
- ` + "`editor_exec`" + ` runs a diagnostic editor method.
- ` + "`perf_profile`" + ` captures a performance snapshot.
{{.guidance}}
## Checklist
- Console is clear of errors
- Object references are assigned in the inspector
- Import settings are correct for the target platform
- Tests pass
`

const optimizeTemplate = `# {{title .focus_area}} Optimization Guide

## Target
- Project path: {{.project_path}}
- Focus area: {{.focus_area}}
- Platform: {{.target_platform}}
- Current metrics: {{or .current_metrics "baseline measurement needed"}}

## Measure first
Run ` + "`perf_profile`" + ` to get a baseline, then change one thing at a time.

## Rendering
- Batch static geometry and share materials to cut draw calls.
- Add LOD groups to dense models.
- Bake lighting where the scene allows it.

## Memory
- Compress textures and audio for the target platform.
- Pool objects that are created and destroyed every frame.
- Remove unused assets; ` + "`asset_audit`" + ` lists candidates.

## CPU
- Keep work out of Update where an event or coroutine will do.
- Cache component lookups.
- Prefer simple colliders to mesh colliders.
{{.guidance}}
## Verify
Profile again with ` + "`perf_profile`" + ` and compare against the baseline.
`

var debugGuidance = map[string]string{
	"compilation": `
## Compilation errors
- Look for missing semicolons, braces or using directives.
- Check assembly definition references.
- Look for APIs removed in the project's editor version.
`,
	"runtime": `
## Runtime errors
- Null-check references before use.
- Validate indexes before reading arrays and lists.
- Log the execution path around the failure.
`,
	"performance": `
## Performance problems
- Profile to find the expensive frame.
- Watch garbage collection frequency.
- Check draw calls and physics cost.
`,
	"ui": `
## UI problems
- Check canvas render modes and anchors.
- Test across resolutions.
- Look for raycast blockers and a missing event system.
`,
	"general": `
## General
- Start from the first error in the console.
- Review recent changes.
- Check release notes for API changes.
`,
}

var optimizeGuidance = map[string]string{
	"rendering": `
## Rendering focus
- Enable occlusion culling in dense scenes.
- Stream large textures.
- Lower shadow cascade count and resolution.
`,
	"memory": `
## Memory focus
- Stream content with asset bundles.
- Use compressed audio.
- Use native collections for large data sets.
`,
	"loading": `
## Loading focus
- Load scenes asynchronously.
- Split content into addressable groups.
- Trim import settings that inflate asset size.
`,
	"general": `
## General
- Profile regularly and set performance budgets.
- Offer scalable quality settings.
- Test on target hardware often.
`,
}
