package catalog

import "github.com/iambrandonn/editorgate/internal/protocol"

// Operation families.
const (
	FamilyCore       = "core"
	FamilyScene      = "scene"
	FamilyGameObject = "gameobject"
	FamilyComponent  = "component"
	FamilyAsset      = "asset"
	FamilyAnimation  = "animation"
)

// CoreTools are the operations enabled by a default configuration file.
var CoreTools = []string{
	"project_scan", "build_run", "test_playmode", "test_editmode",
	"scene_validate", "asset_audit", "codegen_apply", "editor_exec", "perf_profile",
}

func required(name string, t Type, desc string) Param {
	return Param{Name: name, Type: t, Required: true, Description: desc}
}

func optional(name string, t Type, def any, desc string) Param {
	return Param{Name: name, Type: t, Default: def, Description: desc}
}

func list(name string, items Type, req bool, desc string) Param {
	return Param{Name: name, Type: TypeArray, Items: items, Required: req, Description: desc}
}

func path(p Param) Param {
	p.Path = true
	return p
}

func oneOf(p Param, values ...string) Param {
	p.Enum = values
	return p
}

func builtin() []Operation {
	var ops []Operation
	ops = append(ops, coreOperations()...)
	ops = append(ops, sceneOperations()...)
	ops = append(ops, gameObjectOperations()...)
	ops = append(ops, componentOperations()...)
	ops = append(ops, assetOperations()...)
	ops = append(ops, animationOperations()...)
	return ops
}

func testRun(name, mode, what string) Operation {
	return Operation{
		Name: name, Action: "test.run", Family: FamilyCore,
		Description: "Run " + what + " tests and return results",
		Params: []Param{
			optional("filters", TypeObject, nil, "Test filters"),
			path(required("output_path", TypeString, "Test results output path")),
			optional("collect_coverage", TypeBoolean, false, "Collect code coverage"),
		},
		Fixed:          protocol.Params{"test_mode": mode},
		TimeoutMinutes: 15,
		SnakeCaseWire:  true,
	}
}

func coreOperations() []Operation {
	return []Operation{
		{
			Name: "project_scan", Action: "project.scan", Family: FamilyCore,
			Description: "Scan project structure and return file metadata",
			Params: []Param{
				{Name: "patterns", Type: TypeArray, Items: TypeString, Default: []string{"**/*.cs", "**/*.prefab"}, Description: "File patterns to scan"},
				optional("include_assets", TypeBoolean, true, "Include asset files"),
				optional("max_depth", TypeInteger, 10, "Maximum directory depth"),
			},
		},
		{
			Name: "build_run", Action: "build.run", Family: FamilyCore,
			Description: "Build the player for a target platform",
			Params: []Param{
				required("target", TypeString, "Build target (StandaloneWindows64, Android, iOS, ...)"),
				oneOf(optional("scripting_backend", TypeString, nil, "Scripting backend"), "Mono", "IL2CPP"),
				optional("development_build", TypeBoolean, false, "Development build"),
				path(required("output_path", TypeString, "Build output path")),
			},
			TimeoutMinutes: 30,
		},
		testRun("test_playmode", "playmode", "PlayMode"),
		testRun("test_editmode", "editmode", "EditMode"),
		{
			Name: "scene_validate", Action: "scene.validate", Family: FamilyCore,
			Description: "Validate scenes for missing references and issues",
			Params: []Param{
				list("scene_paths", TypeString, false, "Scenes to validate (all when omitted)"),
				optional("check_missing_scripts", TypeBoolean, true, "Check for missing scripts"),
				optional("check_lightmaps", TypeBoolean, true, "Check lightmap issues"),
			},
		},
		{
			Name: "asset_audit", Action: "asset.audit", Family: FamilyCore,
			Description: "Audit assets for optimization and issues",
			Params: []Param{
				list("asset_types", TypeString, false, "Asset types to audit"),
				optional("check_import_settings", TypeBoolean, true, "Check import settings"),
				optional("check_optimization", TypeBoolean, true, "Check optimization opportunities"),
			},
		},
		{
			Name: "codegen_apply", Action: "codegen.apply", Family: FamilyCore,
			Description: "Apply a code patch to a project file",
			Params: []Param{
				path(required("file_path", TypeString, "Target file path")),
				required("patch_content", TypeString, "Patch content to apply"),
				optional("preview_only", TypeBoolean, false, "Preview changes without applying"),
			},
		},
		{
			Name: "editor_exec", Action: "editor.exec", Family: FamilyCore,
			Description: "Execute a static editor method",
			Params: []Param{
				required("method_name", TypeString, "Fully qualified method name"),
				optional("parameters", TypeObject, nil, "Method parameters"),
			},
			TimeoutMinutes: 5,
		},
		{
			Name: "perf_profile", Action: "perf.profile", Family: FamilyCore,
			Description: "Profile performance and collect metrics",
			Params: []Param{
				optional("scene_path", TypeString, nil, "Scene to profile"),
				optional("duration_seconds", TypeInteger, 30, "Profiling duration"),
				path(required("output_path", TypeString, "Profiler data output path")),
			},
		},
	}
}

func sceneOperations() []Operation {
	scene := func(name, action, desc string, params ...Param) Operation {
		return Operation{Name: name, Action: action, Family: FamilyScene, Description: desc, Params: params}
	}
	return []Operation{
		scene("scene_load", "scene.load", "Load a scene in the editor",
			required("scene_path", TypeString, "Scene asset path"),
			optional("additive", TypeBoolean, false, "Load additively")),
		scene("scene_save", "scene.save", "Save the current scene",
			optional("scene_path", TypeString, nil, "Scene to save"),
			path(optional("save_as", TypeString, nil, "Save under a new path"))),
		scene("scene_create", "scene.create", "Create a new scene",
			required("scene_name", TypeString, "Scene name"),
			optional("template", TypeString, nil, "Scene template")),
		scene("scene_hierarchy", "scene.hierarchy", "Return the scene object hierarchy",
			optional("scene_path", TypeString, nil, "Scene asset path"),
			optional("filter_type", TypeString, nil, "Only objects with this component type")),
		scene("lighting_settings", "lighting.settings", "Read or change scene lighting settings",
			optional("scene_path", TypeString, nil, "Scene asset path"),
			required("settings", TypeObject, "Lighting settings to apply")),
		scene("scene_merge", "scene.merge", "Merge one scene into another",
			required("source_scene", TypeString, "Scene to merge from"),
			required("target_scene", TypeString, "Scene to merge into"),
			oneOf(optional("merge_mode", TypeString, "additive", "Merge mode"), "additive", "replace")),
		scene("scene_compare", "scene.compare", "Compare two scenes",
			required("scene_a", TypeString, "First scene"),
			required("scene_b", TypeString, "Second scene"),
			optional("compare_type", TypeString, "objects", "What to compare")),
		scene("scene_optimize", "scene.optimize", "Optimize a scene",
			required("scene_path", TypeString, "Scene asset path"),
			oneOf(optional("optimization_level", TypeString, "medium", "Optimization level"), "low", "medium", "high")),
		scene("scene_backup", "scene.backup", "Back up a scene",
			required("scene_path", TypeString, "Scene asset path"),
			path(optional("backup_path", TypeString, nil, "Backup location"))),
		scene("scene_statistics", "scene.statistics", "Collect scene statistics",
			optional("scene_path", TypeString, nil, "Scene asset path"),
			optional("include_assets", TypeBoolean, true, "Include referenced assets")),
	}
}

func gameObjectOperations() []Operation {
	gameObject := func(name, action, desc string, params ...Param) Operation {
		return Operation{Name: name, Action: action, Family: FamilyGameObject, Description: desc, Params: params}
	}
	object := required("object_path", TypeString, "Hierarchy path of the object")
	vector := func(name, desc string) Param { return list(name, TypeNumber, false, desc) }
	return []Operation{
		gameObject("gameobject_create", "gameobject.create", "Create a game object",
			required("name", TypeString, "Object name"),
			optional("parent_path", TypeString, nil, "Parent object"),
			oneOf(optional("primitive_type", TypeString, nil, "Primitive to create"),
				"Cube", "Sphere", "Capsule", "Cylinder", "Plane", "Quad")),
		gameObject("gameobject_delete", "gameobject.delete", "Delete a game object",
			object, optional("confirm", TypeBoolean, false, "Confirm deletion")),
		gameObject("gameobject_find", "gameobject.find", "Find game objects",
			required("search_query", TypeString, "Search text"),
			oneOf(optional("search_type", TypeString, "name", "Search by"), "name", "tag", "component"),
			optional("scene_path", TypeString, nil, "Scene to search")),
		gameObject("gameobject_transform", "gameobject.transform", "Set position, rotation or scale",
			object, vector("position", "Position [x, y, z]"), vector("rotation", "Euler rotation [x, y, z]"), vector("scale", "Scale [x, y, z]")),
		gameObject("gameobject_parent", "gameobject.parent", "Reparent an object (no parent unparents)",
			required("child_path", TypeString, "Object to move"),
			optional("parent_path", TypeString, nil, "New parent")),
		gameObject("gameobject_duplicate", "gameobject.duplicate", "Duplicate an object",
			object, optional("count", TypeInteger, 1, "Number of copies"), vector("offset", "Offset between copies")),
		gameObject("gameobject_rename", "gameobject.rename", "Rename an object",
			object, required("new_name", TypeString, "New name")),
		gameObject("gameobject_tag", "gameobject.tag", "Set an object's tag",
			object, required("tag", TypeString, "Tag")),
		gameObject("gameobject_layer", "gameobject.layer", "Set an object's layer",
			object, Param{Name: "layer", Types: []Type{TypeString, TypeInteger}, Required: true, Description: "Layer name or index"}),
		gameObject("gameobject_active", "gameobject.active", "Activate or deactivate an object",
			object, required("active", TypeBoolean, "Active state")),
		gameObject("prefab_create", "prefab.create", "Create a prefab from an object",
			object, path(required("prefab_path", TypeString, "Prefab asset path")),
			optional("replace_original", TypeBoolean, false, "Replace the object with the prefab instance")),
		gameObject("prefab_instantiate", "prefab.instantiate", "Instantiate a prefab",
			required("prefab_path", TypeString, "Prefab asset path"),
			optional("parent_path", TypeString, nil, "Parent object"),
			vector("position", "Position [x, y, z]"), vector("rotation", "Euler rotation [x, y, z]")),
		gameObject("prefab_unpack", "prefab.unpack", "Unpack a prefab instance",
			required("prefab_instance_path", TypeString, "Prefab instance path"),
			oneOf(optional("unpack_mode", TypeString, "completely", "Unpack mode"), "completely", "root", "outermost")),
		gameObject("gameobject_group", "gameobject.group", "Group objects under a new parent",
			list("object_paths", TypeString, true, "Objects to group"),
			required("group_name", TypeString, "Group object name")),
		gameObject("gameobject_align", "gameobject.align", "Align objects",
			list("object_paths", TypeString, true, "Objects to align"),
			oneOf(optional("align_type", TypeString, "center", "Alignment"), "center", "left", "right", "top", "bottom")),
	}
}

func componentOperations() []Operation {
	component := func(name, action, desc string, params ...Param) Operation {
		return Operation{Name: name, Action: action, Family: FamilyComponent, Description: desc, Params: params}
	}
	object := required("object_path", TypeString, "Hierarchy path of the object")
	kind := required("component_type", TypeString, "Component type name")
	confirm := optional("confirm", TypeBoolean, false, "Confirm the change")
	return []Operation{
		component("component_add", "component.add", "Add a component",
			object, kind, optional("parameters", TypeObject, nil, "Initial property values")),
		component("component_remove", "component.remove", "Remove a component", object, kind, confirm),
		component("component_get", "component.get", "Read component data",
			object, optional("component_type", TypeString, nil, "Component type (all when omitted)")),
		component("component_set_property", "component.setProperty", "Set a component property",
			object, kind,
			required("property_name", TypeString, "Property name"),
			Param{Name: "property_value", Type: TypeAny, Required: true, Description: "Property value"}),
		component("component_copy", "component.copy", "Copy a component between objects",
			required("source_object_path", TypeString, "Source object"),
			required("target_object_path", TypeString, "Target object"), kind),
		component("component_serialize", "component.serialize", "Serialize a component to a file",
			object, kind, path(required("output_path", TypeString, "Output file"))),
		component("component_deserialize", "component.deserialize", "Apply serialized component data",
			object, required("input_path", TypeString, "Serialized data file"),
			optional("overwrite", TypeBoolean, false, "Overwrite existing values")),
		component("component_validate", "component.validate", "Validate components",
			optional("object_path", TypeString, nil, "Object to validate"),
			optional("component_type", TypeString, nil, "Component type to validate")),
		component("component_reset", "component.reset", "Reset a component to defaults", object, kind, confirm),
		component("component_enable", "component.enable", "Enable or disable a component",
			object, kind, required("enabled", TypeBoolean, "Enabled state")),
	}
}

func assetOperations() []Operation {
	asset := func(name, action, desc string, params ...Param) Operation {
		return Operation{Name: name, Action: action, Family: FamilyAsset, Description: desc, Params: params}
	}
	assetPath := required("asset_path", TypeString, "Asset path")
	buildTarget := optional("build_target", TypeString, "StandaloneWindows64", "Build target")
	return []Operation{
		asset("asset_import", "asset.import", "Import an asset",
			assetPath, optional("import_settings", TypeObject, nil, "Import settings"),
			optional("force_reimport", TypeBoolean, false, "Force reimport")),
		asset("asset_export", "asset.export", "Export an asset",
			assetPath, path(required("export_path", TypeString, "Export location")),
			required("export_format", TypeString, "Export format"),
			optional("export_settings", TypeObject, nil, "Export settings")),
		asset("asset_database_refresh", "asset.database.refresh", "Refresh the asset database",
			optional("force_refresh", TypeBoolean, false, "Force a full refresh"),
			oneOf(optional("import_mode", TypeString, "synchronous", "Import mode"), "synchronous", "asynchronous")),
		asset("asset_search", "asset.search", "Search assets",
			required("search_filter", TypeString, "Search filter"),
			optional("asset_type", TypeString, nil, "Asset type"),
			optional("folder_path", TypeString, nil, "Folder to search")),
		asset("asset_move", "asset.move", "Move or rename an asset",
			required("source_path", TypeString, "Asset to move"),
			path(required("destination_path", TypeString, "Destination")),
			optional("overwrite", TypeBoolean, false, "Overwrite the destination")),
		asset("asset_delete", "asset.delete", "Delete an asset",
			assetPath, optional("confirm", TypeBoolean, true, "Confirm deletion")),
		asset("texture_import", "texture.import", "Import a texture with settings",
			required("texture_path", TypeString, "Texture path"),
			optional("texture_type", TypeString, "Default", "Texture type"),
			optional("max_size", TypeInteger, 2048, "Maximum size"),
			optional("compression", TypeString, "Normal", "Compression"),
			optional("generate_mipmaps", TypeBoolean, true, "Generate mipmaps")),
		asset("mesh_import", "mesh.import", "Import a mesh with settings",
			required("mesh_path", TypeString, "Mesh path"),
			optional("scale_factor", TypeNumber, 1.0, "Scale factor"),
			optional("generate_colliders", TypeBoolean, false, "Generate colliders"),
			optional("optimize_mesh", TypeBoolean, true, "Optimize mesh"),
			optional("import_materials", TypeBoolean, true, "Import materials")),
		asset("audio_import", "audio.import", "Import an audio clip with settings",
			required("audio_path", TypeString, "Audio path"),
			optional("audio_format", TypeString, "Compressed", "Audio format"),
			optional("quality", TypeNumber, 0.7, "Compression quality"),
			optional("load_type", TypeString, "Decompress On Load", "Load type"),
			optional("force_mono", TypeBoolean, false, "Force mono")),
		asset("asset_bundle_create", "assetbundle.create", "Create an asset bundle",
			required("bundle_name", TypeString, "Bundle name"),
			list("asset_paths", TypeString, true, "Assets in the bundle"),
			buildTarget, path(required("output_path", TypeString, "Output directory"))),
		asset("asset_bundle_build", "assetbundle.build", "Build all asset bundles",
			path(required("output_path", TypeString, "Output directory")), buildTarget,
			list("build_options", TypeString, false, "Build options")),
		asset("asset_dependency", "asset.dependency", "List asset dependencies",
			assetPath, optional("include_indirect", TypeBoolean, false, "Include indirect dependencies")),
		{
			Name: "asset_metadata", Action: "asset.metadata.get", Family: FamilyAsset,
			Description: "Get asset metadata, or set it when a value is given",
			Params: []Param{
				assetPath,
				optional("metadata_key", TypeString, nil, "Metadata key"),
				optional("metadata_value", TypeString, nil, "Value to set"),
			},
			Variant: func(args map[string]any) string {
				if v, ok := args["metadata_value"]; ok && v != nil {
					return "asset.metadata.set"
				}
				return ""
			},
		},
		asset("asset_validate", "asset.validate", "Validate assets",
			optional("asset_path", TypeString, nil, "Asset to validate (all when omitted)"),
			optional("validation_type", TypeString, "all", "Validation type")),
		asset("asset_optimize", "asset.optimize", "Optimize assets",
			optional("asset_path", TypeString, nil, "Asset to optimize (all when omitted)"),
			optional("optimization_type", TypeString, "all", "Optimization type"),
			optional("backup", TypeBoolean, true, "Back up before optimizing")),
	}
}

func animationOperations() []Operation {
	animation := func(name, action, desc string, params ...Param) Operation {
		return Operation{Name: name, Action: action, Family: FamilyAnimation, Description: desc, Params: params}
	}
	controller := required("controller_path", TypeString, "Animator controller path")
	layer := optional("layer_name", TypeString, "Base Layer", "Animator layer")
	return []Operation{
		animation("animation_clip_create", "animation.clip.create", "Create an animation clip",
			required("clip_name", TypeString, "Clip name"),
			optional("duration", TypeNumber, 1.0, "Duration in seconds"),
			optional("frame_rate", TypeInteger, 60, "Frame rate"),
			optional("loop", TypeBoolean, true, "Loop the clip")),
		animation("animation_clip_edit", "animation.clip.edit", "Edit curves of an animation clip",
			required("clip_path", TypeString, "Clip path"),
			required("property_path", TypeString, "Animated property"),
			list("keyframes", TypeObject, true, "Keyframes"),
			oneOf(optional("curve_type", TypeString, "linear", "Curve type"), "linear", "constant", "ease")),
		animation("animator_controller_create", "animator.controller.create", "Create an animator controller",
			required("controller_name", TypeString, "Controller name"),
			path(required("output_path", TypeString, "Output path")),
			list("layers", TypeString, false, "Layer names"),
			list("parameters", TypeObject, false, "Animator parameters")),
		animation("animator_state", "animator.state", "Add or update an animator state",
			controller, layer,
			required("state_name", TypeString, "State name"),
			optional("animation_clip", TypeString, nil, "Clip for the state"),
			optional("position", TypeObject, nil, "Graph position {x, y}")),
		animation("animator_transition", "animator.transition", "Add a transition between states",
			controller, layer,
			required("from_state", TypeString, "Source state"),
			required("to_state", TypeString, "Destination state"),
			list("conditions", TypeObject, false, "Transition conditions"),
			optional("duration", TypeNumber, 0.25, "Transition duration")),
		animation("timeline_create", "timeline.create", "Create a timeline asset",
			required("timeline_name", TypeString, "Timeline name"),
			path(required("output_path", TypeString, "Output path")),
			optional("duration", TypeNumber, 10.0, "Duration in seconds"),
			optional("frame_rate", TypeInteger, 60, "Frame rate")),
		animation("timeline_track", "timeline.track", "Add a timeline track",
			required("timeline_path", TypeString, "Timeline path"),
			required("track_name", TypeString, "Track name"),
			required("track_type", TypeString, "Track type"),
			optional("binding_object", TypeString, nil, "Bound object")),
		animation("timeline_clip", "timeline.clip", "Add a clip to a timeline track",
			required("timeline_path", TypeString, "Timeline path"),
			required("track_name", TypeString, "Track name"),
			required("clip_name", TypeString, "Clip name"),
			optional("start_time", TypeNumber, 0.0, "Start time"),
			optional("duration", TypeNumber, 1.0, "Duration"),
			optional("asset_path", TypeString, nil, "Clip asset")),
		animation("animation_record", "animation.record", "Record object properties into a clip",
			required("target_object", TypeString, "Object to record"),
			required("clip_name", TypeString, "Clip name"),
			list("properties", TypeString, true, "Properties to record"),
			optional("duration", TypeNumber, 5.0, "Recording duration"),
			optional("auto_key", TypeBoolean, true, "Automatic keyframing")),
		animation("animation_bake", "animation.bake", "Bake object motion into a clip",
			required("source_object", TypeString, "Object to bake"),
			required("target_clip", TypeString, "Clip to write"),
			optional("frame_range", TypeObject, nil, "Frame range {start, end}"),
			optional("sample_rate", TypeInteger, 60, "Sample rate"),
			optional("bake_pose", TypeBoolean, true, "Bake the pose")),
	}
}
