package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t   *testing.T
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	chdir(t, t.TempDir())
	return &cli{t: t, dir: filepath.Join(t.TempDir(), "plant")}
}

func (c *cli) run(args ...string) (string, string, error) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"--dir", c.dir}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, stderr, err := c.run(args...)
	require.NoError(c.t, err, "twinctl %s\nstderr: %s", strings.Join(args, " "), stderr)
	return strings.TrimSpace(out)
}

func TestTypesNeedsNoProject(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run([]string{"types"}, &stdout, &bytes.Buffer{}))
	assert.Contains(t, stdout.String(), "MECH  Mechanical")
	assert.Contains(t, stdout.String(), "CUST  Custom")
}

func TestInitCreatesProjectFiles(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("init")
	assert.Contains(t, out, "project plant ready (fs)")
	for _, name := range []string{"systems.json", "technologies.json", "connections.json"} {
		payload, err := os.ReadFile(filepath.Join(c.dir, name))
		require.NoError(t, err)
		assert.JSONEq(t, "[]", string(payload))
	}
}

func TestEditingSession(t *testing.T) {
	c := newCLI(t)
	c.mustRun("init")

	root := c.mustRun("system", "add", "Line", "-d", "assembly line")
	require.Equal(t, "000000000001", root)
	robot := c.mustRun("system", "add", "Robot", "--parent", root)
	require.Equal(t, "000001010001", robot)
	welder := c.mustRun("tech", "add", "Welder")
	require.Equal(t, "000000000001", welder)

	c.mustRun("system", "attr", robot, "energy", "400V")
	c.mustRun("assign", robot, welder)
	id := c.mustRun("connect", root, "elec", robot, "-d", "feed")
	require.NotEmpty(t, id)

	tree := c.mustRun("system", "tree")
	assert.Equal(t, "Line | 000000000001\n  Robot | 000001010001", tree)

	show := c.mustRun("system", "show", robot)
	assert.Contains(t, show, "attribute:   energy: 400V")
	assert.Contains(t, show, "technology:  Welder | "+welder)

	conns := c.mustRun("connections", robot, "--role", "target")
	assert.Equal(t, id+"  Line | 000000000001 -> Electrical -> Robot | 000001010001", conns)

	lineage := c.mustRun("describe", "system", robot, "lineage")
	assert.Equal(t, "Line / Robot", lineage)

	renamed := c.mustRun("system", "update", robot, "--name", "Arm")
	assert.Equal(t, "Arm | "+robot, renamed)

	var doc exportDocument
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("export")), &doc))
	assert.Equal(t, "plant", doc.Project)
	require.Len(t, doc.Systems, 2)
	assert.Equal(t, "assembly line", doc.Systems[0].Description)
	require.Len(t, doc.Connections, 1)
	assert.Equal(t, "ELEC", doc.Connections[0].TypeID)

	yamlOut := c.mustRun("export", "--format", "yaml")
	assert.Contains(t, yamlOut, "full_code: \"000001010001\"")
	assert.Contains(t, yamlOut, "type_label: Electrical")

	check := c.mustRun("check")
	assert.Contains(t, check, "0 blocking, 0 warnings")
}

func TestDanglingReferencesAndPrune(t *testing.T) {
	c := newCLI(t)
	sys := c.mustRun("system", "add", "Line")
	other := c.mustRun("system", "add", "Cell")
	tech := c.mustRun("tech", "add", "Welder")
	c.mustRun("assign", sys, tech)
	c.mustRun("connect", sys, "MECH", other)

	deleted := c.mustRun("tech", "delete", tech)
	assert.Equal(t, tech, deleted)
	c.mustRun("system", "delete", other)

	show := c.mustRun("system", "show", sys)
	assert.Contains(t, show, "technology:  [missing] | "+tech)

	check := c.mustRun("check")
	assert.Contains(t, check, "0 blocking, 2 warnings")

	pruned := c.mustRun("prune")
	assert.Contains(t, pruned, "unassigned "+tech+" from "+sys)
	assert.Contains(t, pruned, "removed connection")
	assert.Contains(t, c.mustRun("check"), "0 blocking, 0 warnings")
}

func TestCommandErrors(t *testing.T) {
	c := newCLI(t)
	sys := c.mustRun("system", "add", "Line")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown parent", []string{"system", "add", "x", "--parent", "000009000009"}, "parent not found"},
		{"unknown technology", []string{"assign", sys, "000000000404"}, "does not exist"},
		{"bad attribute", []string{"system", "attr", sys, "thermal", "hot"}, "invalid attribute type"},
		{"self loop", []string{"connect", sys, "MECH", sys}, "self-loop"},
		{"custom without label", []string{"connect", sys, "CUST", "000000000002"}, "custom type requires a label"},
		{"unknown behavior", []string{"describe", "system", sys, "dance"}, "unknown behavior"},
		{"unknown format", []string{"export", "--format", "xml"}, "unknown format"},
		{"delete missing", []string{"tech", "delete", "000000000001"}, "no technology"},
		{"bad driver", []string{"--driver", "ftp", "check"}, "validate flags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTraceAndMetricsOutput(t *testing.T) {
	c := newCLI(t)
	t.Setenv("TWINCORE_METRICS_EXPORTER", "expvar")

	_, stderr, err := c.run("--trace", "system", "add", "Line")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"operation":"systems.create"`)
	assert.Contains(t, stderr, `"systems.create":{"success":1`)
}

func TestPrometheusMetricsDump(t *testing.T) {
	c := newCLI(t)
	t.Setenv("TWINCORE_METRICS_EXPORTER", "prometheus")

	_, stderr, err := c.run("tech", "add", "Pump")
	require.NoError(t, err)
	assert.Contains(t, stderr, `twincore_store_operations_total{operation="technologies.create",status="success"} 1`)
}

func TestSqliteDriver(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "model.db")
	t.Setenv("TWINCORE_STORAGE_SQLITE_PATH", path)

	_, _, err := c.run("--driver", "sqlite", "system", "add", "Line")
	if err != nil && strings.Contains(err.Error(), "open sqlite storage") {
		t.Skipf("sqlite unavailable: %v", err)
	}
	require.NoError(t, err)
	tree := c.mustRun("--driver", "sqlite", "system", "tree")
	assert.Equal(t, "Line | 000000000001", tree)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
