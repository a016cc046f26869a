package manifest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/docforge/internal/build"
	"github.com/vk/docforge/internal/ctxlog"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

// writeManifest writes the given manifest files under a fresh temp root and
// returns the root directory.
func writeManifest(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestLoadBuildsGraph(t *testing.T) {
	root := writeManifest(t, map[string]string{
		"docforge.hcl": `
vars {
  out = "build"
}

directory "out" {
  path    = var.out
  parents = true
}

text "preamble" {
  path    = "${var.out}/preamble.tex"
  content = "\\usepackage{amsmath}"
  needs   = ["directory.out"]
}

link "latest" {
  source = "text.preamble"
  path   = "preamble.tex"
}
`,
	})

	graph, err := NewLoader().Load(testContext(t), root, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"directory.out", "text.preamble", "link.latest"},
		graph.Addresses())

	targets, err := graph.Targets(nil)
	require.NoError(t, err)
	require.Len(t, targets, 1, "only the link is a sink")
	assert.Equal(t, "link.latest", targets[0].Name())

	require.NoError(t, build.NewUpdater(2).Update(testContext(t), targets...))

	content, readErr := os.ReadFile(filepath.Join(root, "build", "preamble.tex"))
	require.NoError(t, readErr)
	assert.Equal(t, "\\usepackage{amsmath}", string(content))

	target, linkErr := os.Readlink(filepath.Join(root, "preamble.tex"))
	require.NoError(t, linkErr)
	assert.Equal(t, filepath.Join("build", "preamble.tex"), target)
}

func TestLoadProductWithCommand(t *testing.T) {
	root := writeManifest(t, map[string]string{
		"src/main.txt": "source material",
		"docforge.hcl": `
file "main" {
  path = "src/main.txt"
}

product "upper" {
  source  = "file.main"
  path    = "main.out"
  command = ["/bin/sh", "-c", "tr a-z A-Z < src/main.txt > main.out"]
}
`,
	})

	graph, err := NewLoader().Load(testContext(t), root, nil)
	require.NoError(t, err)

	targets, err := graph.Targets([]string{"product.upper"})
	require.NoError(t, err)
	require.NoError(t, build.NewUpdater(1).Update(testContext(t), targets...))

	content, readErr := os.ReadFile(filepath.Join(root, "main.out"))
	require.NoError(t, readErr)
	assert.Equal(t, "SOURCE MATERIAL", string(content))
}

func TestLoadChainedProducts(t *testing.T) {
	// product.second sources product.first: construction must retry until
	// the chain resolves, regardless of declaration order.
	root := writeManifest(t, map[string]string{
		"main.txt": "abc",
		"docforge.hcl": `
product "second" {
  source  = "product.first"
  path    = "main.rev2"
  command = ["/bin/sh", "-c", "rev < main.rev > main.rev2"]
}

product "first" {
  source  = "file.main"
  path    = "main.rev"
  command = ["/bin/sh", "-c", "rev < main.txt > main.rev"]
}

file "main" {
  path = "main.txt"
}
`,
	})

	graph, err := NewLoader().Load(testContext(t), root, nil)
	require.NoError(t, err)

	targets, err := graph.Targets(nil)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "product.second", targets[0].Name())
}

func TestLoadVarOverrides(t *testing.T) {
	root := writeManifest(t, map[string]string{
		"docforge.hcl": `
vars {
  greeting = "hello"
}

text "msg" {
  path    = "msg.txt"
  content = var.greeting
}
`,
	})

	graph, err := NewLoader().Load(testContext(t), root, map[string]string{"greeting": "bonjour"})
	require.NoError(t, err)

	targets, err := graph.Targets(nil)
	require.NoError(t, err)
	require.NoError(t, build.NewUpdater(1).Update(testContext(t), targets...))

	content, readErr := os.ReadFile(filepath.Join(root, "msg.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "bonjour", string(content))
}

func TestLoadErrors(t *testing.T) {
	t.Run("duplicate address", func(t *testing.T) {
		root := writeManifest(t, map[string]string{
			"docforge.hcl": `
file "main" { path = "a.txt" }
file "main" { path = "b.txt" }
`,
		})
		_, err := NewLoader().Load(testContext(t), root, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate address")
	})

	t.Run("unknown needs reference", func(t *testing.T) {
		root := writeManifest(t, map[string]string{
			"docforge.hcl": `
text "msg" {
  path    = "msg.txt"
  content = "x"
  needs   = ["file.ghost"]
}
`,
		})
		_, err := NewLoader().Load(testContext(t), root, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown node")
	})

	t.Run("unknown source reference", func(t *testing.T) {
		root := writeManifest(t, map[string]string{
			"docforge.hcl": `
link "latest" {
  source = "file.ghost"
  path   = "latest.txt"
}
`,
		})
		_, err := NewLoader().Load(testContext(t), root, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unresolved source")
	})

	t.Run("invalid hcl", func(t *testing.T) {
		root := writeManifest(t, map[string]string{
			"docforge.hcl": `file "broken" {`,
		})
		_, err := NewLoader().Load(testContext(t), root, nil)
		require.Error(t, err)
	})

	t.Run("missing manifest", func(t *testing.T) {
		_, err := NewLoader().Load(testContext(t), filepath.Join(t.TempDir(), "nope"), nil)
		require.Error(t, err)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := NewLoader().Load(testContext(t), t.TempDir(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no .hcl files")
	})

	t.Run("unknown target", func(t *testing.T) {
		root := writeManifest(t, map[string]string{
			"docforge.hcl": `file "main" { path = "a.txt" }`,
		})
		graph, err := NewLoader().Load(testContext(t), root, nil)
		require.NoError(t, err)
		_, err = graph.Targets([]string{"product.ghost"})
		require.Error(t, err)
	})
}

func TestLoadSingleFilePath(t *testing.T) {
	root := writeManifest(t, map[string]string{
		"sub/build.hcl": `
text "msg" {
  path    = "msg.txt"
  content = "from single file"
}
`,
	})

	graph, err := NewLoader().Load(testContext(t), filepath.Join(root, "sub", "build.hcl"), nil)
	require.NoError(t, err)

	n, ok := graph.Node("text.msg")
	require.True(t, ok)
	pathed, ok := n.(build.Pathed)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "sub", "msg.txt"), pathed.Path(),
		"relative paths resolve against the manifest file's directory")
}

func TestForceFlag(t *testing.T) {
	root := writeManifest(t, map[string]string{
		"msg.txt": "old",
		"docforge.hcl": `
text "msg" {
  path    = "msg.txt"
  content = "forced content"
  force   = true
}
`,
	})

	graph, err := NewLoader().Load(testContext(t), root, nil)
	require.NoError(t, err)

	targets, err := graph.Targets(nil)
	require.NoError(t, err)
	require.NoError(t, build.NewUpdater(1).Update(testContext(t), targets...))

	content, readErr := os.ReadFile(filepath.Join(root, "msg.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "forced content", string(content), "force must rebuild an existing artifact")
}
