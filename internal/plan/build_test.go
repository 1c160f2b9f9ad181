package plan

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/config"
	"github.com/Nr18/shipline/internal/registry"
	"github.com/Nr18/shipline/internal/run"
)

func expr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	return e
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.Register("exec", &registry.Handler{
		Fn: func(context.Context, *registry.StepContext, any) (cty.Value, error) {
			return cty.NilVal, nil
		},
	})
	return reg
}

func execStep(name string) *config.Step {
	return &config.Step{Name: name, Uses: "exec"}
}

func prRun() *run.Run {
	return run.New(run.TriggerPullRequest, "Nr18/marked-space", "refs/heads/feature", "abc", nil, nil)
}

func anyTrigger() []*config.TriggerRule {
	return []*config.TriggerRule{{Event: "pull_request"}}
}

func TestBuildMatrixExpansion(t *testing.T) {
	model := &config.Model{
		Templates: map[string]*config.Template{},
		Pipelines: []*config.Pipeline{{
			Name: "ci",
			On:   anyTrigger(),
			Jobs: []*config.Job{
				{
					Name:   "build",
					Matrix: &config.Matrix{Axes: map[string][]string{"os": {"ubuntu", "windows"}}},
					Steps:  []*config.Step{execStep("compile")},
				},
				{
					Name:  "docker",
					Needs: []string{"build"},
					Steps: []*config.Step{execStep("publish")},
				},
			},
		}},
	}

	graph, err := Build(context.Background(), model, testRegistry(t), prRun())
	require.NoError(t, err)

	require.Len(t, graph.Instances, 3)
	ubuntu := graph.Instances["build[os=ubuntu]"]
	windows := graph.Instances["build[os=windows]"]
	docker := graph.Instances["docker"]
	require.NotNil(t, ubuntu)
	require.NotNil(t, windows)
	require.NotNil(t, docker)

	// A dependency on the job-as-a-whole waits for every matrix instance.
	assert.Len(t, docker.Deps, 2)
	assert.Contains(t, docker.Deps, ubuntu.ID)
	assert.Contains(t, docker.Deps, windows.ID)
	assert.Equal(t, map[string]string{"os": "ubuntu"}, ubuntu.Matrix)
}

func templateModel(with map[string]hcl.Expression) *config.Model {
	return &config.Model{
		Templates: map[string]*config.Template{
			"build": {
				Name: "build",
				Inputs: map[string]*config.InputDefinition{
					"os":      {Name: "os", Type: cty.String},
					"release": {Name: "release", Type: cty.Bool, Optional: true},
				},
				Jobs: []*config.Job{
					{Name: "compile", Steps: []*config.Step{execStep("cargo")}},
					{Name: "upload", Needs: []string{"compile"}, Steps: []*config.Step{execStep("put")}},
				},
			},
		},
		Pipelines: []*config.Pipeline{{
			Name: "ci",
			On:   anyTrigger(),
			Jobs: []*config.Job{{
				Name:   "build",
				Matrix: &config.Matrix{Axes: map[string][]string{"os": {"ubuntu", "windows"}}},
				Call:   &config.TemplateCall{Template: "build", With: with},
			}},
		}},
	}
}

func TestBuildTemplateExpansion(t *testing.T) {
	model := templateModel(map[string]hcl.Expression{"os": expr(t, "matrix.os")})

	graph, err := Build(context.Background(), model, testRegistry(t), prRun())
	require.NoError(t, err)

	// 2 matrix values x 2 template jobs.
	require.Len(t, graph.Instances, 4)

	compile := graph.Instances["build[os=ubuntu]/compile"]
	upload := graph.Instances["build[os=ubuntu]/upload"]
	require.NotNil(t, compile)
	require.NotNil(t, upload)

	t.Run("call-site inputs bound per matrix instance", func(t *testing.T) {
		assert.Equal(t, "ubuntu", compile.Inputs["os"].AsString())
		other := graph.Instances["build[os=windows]/compile"]
		assert.Equal(t, "windows", other.Inputs["os"].AsString())
	})

	t.Run("optional input without default binds null", func(t *testing.T) {
		assert.True(t, compile.Inputs["release"].IsNull())
	})

	t.Run("template-internal needs stay within the combination", func(t *testing.T) {
		require.Len(t, upload.Deps, 1)
		assert.Contains(t, upload.Deps, compile.ID)
	})

	t.Run("call site identity recorded", func(t *testing.T) {
		assert.Equal(t, "build", compile.CallSite)
		assert.Equal(t, "build", compile.Group)
	})
}

func TestBuildMultipleCallSites(t *testing.T) {
	// Two jobs invoke the same template with different inputs; each
	// expansion is its own set of instances.
	model := templateModel(nil)
	model.Pipelines[0].Jobs = []*config.Job{
		{
			Name: "linux",
			Call: &config.TemplateCall{Template: "build", With: map[string]hcl.Expression{"os": expr(t, `"ubuntu"`)}},
		},
		{
			Name: "release-build",
			Call: &config.TemplateCall{Template: "build", With: map[string]hcl.Expression{"os": expr(t, `"windows"`)}},
		},
	}

	graph, err := Build(context.Background(), model, testRegistry(t), prRun())
	require.NoError(t, err)

	// 2 call sites x 2 template jobs.
	require.Len(t, graph.Instances, 4)
	linux := graph.Instances["linux/compile"]
	rel := graph.Instances["release-build/compile"]
	require.NotNil(t, linux)
	require.NotNil(t, rel)

	t.Run("inputs bound per call site", func(t *testing.T) {
		assert.Equal(t, "ubuntu", linux.Inputs["os"].AsString())
		assert.Equal(t, "windows", rel.Inputs["os"].AsString())
	})

	t.Run("call site identities are distinct", func(t *testing.T) {
		assert.Equal(t, "linux", linux.CallSite)
		assert.Equal(t, "release-build", rel.CallSite)
	})

	t.Run("template-internal needs stay within the call site", func(t *testing.T) {
		linuxUpload := graph.Instances["linux/upload"]
		require.NotNil(t, linuxUpload)
		require.Len(t, linuxUpload.Deps, 1)
		assert.Contains(t, linuxUpload.Deps, linux.ID)
		assert.NotContains(t, linuxUpload.Deps, rel.ID)
	})
}

func TestBuildTemplateErrors(t *testing.T) {
	t.Run("missing required input", func(t *testing.T) {
		model := templateModel(nil)
		_, err := Build(context.Background(), model, testRegistry(t), prRun())
		assert.ErrorContains(t, err, `requires input "os"`)
	})

	t.Run("unknown input name", func(t *testing.T) {
		model := templateModel(map[string]hcl.Expression{
			"os":   expr(t, `"ubuntu"`),
			"arch": expr(t, `"amd64"`),
		})
		_, err := Build(context.Background(), model, testRegistry(t), prRun())
		assert.ErrorContains(t, err, `no input "arch"`)
	})

	t.Run("input type mismatch", func(t *testing.T) {
		model := templateModel(map[string]hcl.Expression{
			"os":      expr(t, `"ubuntu"`),
			"release": expr(t, `"not-a-bool"`),
		})
		_, err := Build(context.Background(), model, testRegistry(t), prRun())
		assert.ErrorContains(t, err, `input "release"`)
	})
}

func TestBuildGraphErrors(t *testing.T) {
	pipelineWith := func(jobs ...*config.Job) *config.Model {
		return &config.Model{
			Templates: map[string]*config.Template{},
			Pipelines: []*config.Pipeline{{Name: "ci", On: anyTrigger(), Jobs: jobs}},
		}
	}

	t.Run("unknown dependency", func(t *testing.T) {
		model := pipelineWith(&config.Job{Name: "a", Needs: []string{"ghost"}, Steps: []*config.Step{execStep("s")}})
		_, err := Build(context.Background(), model, testRegistry(t), prRun())
		assert.ErrorContains(t, err, `unknown job "ghost"`)
	})

	t.Run("self dependency", func(t *testing.T) {
		model := pipelineWith(&config.Job{Name: "a", Needs: []string{"a"}, Steps: []*config.Step{execStep("s")}})
		_, err := Build(context.Background(), model, testRegistry(t), prRun())
		assert.ErrorContains(t, err, "depends on itself")
	})

	t.Run("cycle", func(t *testing.T) {
		model := pipelineWith(
			&config.Job{Name: "a", Needs: []string{"b"}, Steps: []*config.Step{execStep("s")}},
			&config.Job{Name: "b", Needs: []string{"a"}, Steps: []*config.Step{execStep("s")}},
		)
		_, err := Build(context.Background(), model, testRegistry(t), prRun())
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("unknown step type", func(t *testing.T) {
		model := pipelineWith(&config.Job{Name: "a", Steps: []*config.Step{{Name: "s", Uses: "teleport"}}})
		_, err := Build(context.Background(), model, testRegistry(t), prRun())
		assert.ErrorContains(t, err, `unknown step type "teleport"`)
	})

	t.Run("no matching pipeline", func(t *testing.T) {
		model := pipelineWith(&config.Job{Name: "a", Steps: []*config.Step{execStep("s")}})
		tagRun := run.New(run.TriggerPushTag, "r", "refs/tags/v1.0.0", "c", nil, nil)
		_, err := Build(context.Background(), model, testRegistry(t), tagRun)
		assert.ErrorContains(t, err, "no pipeline matches")
	})
}

func TestSelectPipeline(t *testing.T) {
	model := &config.Model{
		Templates: map[string]*config.Template{},
		Pipelines: []*config.Pipeline{
			{Name: "ci", On: []*config.TriggerRule{{Event: "pull_request"}, {Event: "push", Branches: []string{"main"}}}},
			{Name: "release", On: []*config.TriggerRule{{Event: "push", Tags: []string{"v*"}}}},
		},
	}

	cases := []struct {
		kind    run.TriggerKind
		ref     string
		want    string
		wantErr bool
	}{
		{run.TriggerPullRequest, "refs/heads/feature", "ci", false},
		{run.TriggerPushBranch, "refs/heads/main", "ci", false},
		{run.TriggerPushBranch, "refs/heads/other", "", true},
		{run.TriggerPushTag, "refs/tags/v1.4.0", "release", false},
		{run.TriggerPushTag, "refs/tags/nightly", "", true},
	}
	for _, tc := range cases {
		r := run.New(tc.kind, "repo", tc.ref, "c", nil, nil)
		p, err := SelectPipeline(model, r)
		if tc.wantErr {
			assert.Error(t, err, "%s %s", tc.kind, tc.ref)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, p.Name, "%s %s", tc.kind, tc.ref)
	}
}

func TestMatrixCombos(t *testing.T) {
	t.Run("nil matrix yields one empty combo", func(t *testing.T) {
		combos := matrixCombos(nil)
		require.Len(t, combos, 1)
		assert.Empty(t, combos[0])
	})

	t.Run("two axes form the cross product", func(t *testing.T) {
		combos := matrixCombos(&config.Matrix{Axes: map[string][]string{
			"os":   {"ubuntu", "windows"},
			"mode": {"debug", "release"},
		}})
		assert.Len(t, combos, 4)
	})
}

func TestMatrixKey(t *testing.T) {
	assert.Equal(t, "", MatrixKey(nil))
	assert.Equal(t, "os=ubuntu", MatrixKey(map[string]string{"os": "ubuntu"}))
	// Axes are sorted so the key is order-independent.
	assert.Equal(t, "arch=amd64,os=ubuntu", MatrixKey(map[string]string{"os": "ubuntu", "arch": "amd64"}))
}
