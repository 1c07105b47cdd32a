package api

// Scene describes a host scene: the texture-bearing nodes with their
// attributes, the loaded plugins and the workspace paths resolve against.
// Scenes are read from HCL or JSON documents.
type Scene struct {
	// Version of the scene format.
	Version string `json:"version" hcl:"version,optional"`
	// Plugins loaded in the host, e.g. "redshift4maya".
	Plugins []string `json:"plugins,omitempty" hcl:"plugins,optional"`
	// Workspace paths are resolved against.
	Workspace *Workspace `json:"workspace,omitempty" hcl:"workspace,block"`
	// Nodes of the scene, in creation order.
	Nodes []Node `json:"nodes,omitempty" hcl:"node,block"`
}

// Workspace is the project root and the variables available to paths.
type Workspace struct {
	Root string            `json:"root,omitempty" hcl:"root,optional"`
	Vars map[string]string `json:"vars,omitempty" hcl:"vars,optional"`
}

// Node is one scene node.
type Node struct {
	// Name uniquely identifies the node within the scene.
	Name string `json:"name" hcl:"name,label"`
	// Kind is the host node type, e.g. "file" or "RedshiftSprite".
	Kind       string `json:"kind" hcl:"kind"`
	Selected   bool   `json:"selected,omitempty" hcl:"selected,optional"`
	Referenced bool   `json:"referenced,omitempty" hcl:"referenced,optional"`
	// Attrs holds attribute values by name. Indexed array elements use
	// the form "array[i].child".
	Attrs map[string]string `json:"attrs,omitempty" hcl:"attrs,optional"`
}

// CurrentVersion is written into scenes produced by this module.
const CurrentVersion = "1"
