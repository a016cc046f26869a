package manifest

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes all top-level blocks a manifest file may contain.
type fileRoot struct {
	Vars        []*varsBlock      `hcl:"vars,block"`
	Files       []*fileBlock      `hcl:"file,block"`
	Texts       []*textBlock      `hcl:"text,block"`
	Directories []*directoryBlock `hcl:"directory,block"`
	Products    []*productBlock   `hcl:"product,block"`
	Links       []*linkBlock      `hcl:"link,block"`
}

// varsBlock is consumed in the first decoding pass; its attributes become
// the var.* namespace for the rest of the manifest.
type varsBlock struct {
	Remain hcl.Body `hcl:",remain"`
}

// fileBlock declares a pre-existing or externally produced file.
type fileBlock struct {
	Name  string   `hcl:"name,label"`
	Path  string   `hcl:"path"`
	Needs []string `hcl:"needs,optional"`
	Force bool     `hcl:"force,optional"`
}

// textBlock declares a file whose content is generated by the build itself.
type textBlock struct {
	Name    string   `hcl:"name,label"`
	Path    string   `hcl:"path"`
	Content string   `hcl:"content"`
	Needs   []string `hcl:"needs,optional"`
	Force   bool     `hcl:"force,optional"`
}

// directoryBlock declares a directory that must exist.
type directoryBlock struct {
	Name    string   `hcl:"name,label"`
	Path    string   `hcl:"path"`
	Parents bool     `hcl:"parents,optional"`
	Needs   []string `hcl:"needs,optional"`
	Force   bool     `hcl:"force,optional"`
}

// productBlock declares an artifact compiled from one source node by an
// external command.
type productBlock struct {
	Name    string   `hcl:"name,label"`
	Source  string   `hcl:"source"`
	Path    string   `hcl:"path"`
	Command []string `hcl:"command"`
	Cwd     string   `hcl:"cwd,optional"`
	Needs   []string `hcl:"needs,optional"`
	Force   bool     `hcl:"force,optional"`
}

// linkBlock declares a symlink pointing at another node's artifact.
// Relative defaults to true: the stored target is computed relative to the
// link's own directory.
type linkBlock struct {
	Name     string   `hcl:"name,label"`
	Source   string   `hcl:"source"`
	Path     string   `hcl:"path"`
	Relative *bool    `hcl:"relative,optional"`
	Needs    []string `hcl:"needs,optional"`
	Force    bool     `hcl:"force,optional"`
}
