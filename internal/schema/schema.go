// Package schema holds the HCL block schemas for pipeline definition
// files, decoded with gohcl before translation into the config model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// File is the top-level structure of one definition file.
type File struct {
	Pipelines []*Pipeline `hcl:"pipeline,block"`
	Templates []*Template `hcl:"template,block"`
	Body      hcl.Body    `hcl:",remain"`
}

// Pipeline represents a `pipeline "name" {}` block.
type Pipeline struct {
	Name string   `hcl:"name,label"`
	On   *OnBlock `hcl:"on,block"`
	Jobs []*Job   `hcl:"job,block"`
}

// OnBlock declares which trigger events select this pipeline.
type OnBlock struct {
	PullRequest *PullRequestRule `hcl:"pull_request,block"`
	Push        []*PushRule      `hcl:"push,block"`
}

// PullRequestRule matches pull request events. It has no options.
type PullRequestRule struct{}

// PushRule matches push events, optionally narrowed by branch or tag
// glob patterns.
type PushRule struct {
	Branches []string `hcl:"branches,optional"`
	Tags     []string `hcl:"tags,optional"`
}

// Job represents a `job "name" {}` block inside a pipeline or template.
type Job struct {
	Name            string         `hcl:"name,label"`
	Needs           []string       `hcl:"needs,optional"`
	RequiresSuccess bool           `hcl:"requires_success,optional"`
	When            hcl.Expression `hcl:"when,optional"`
	Timeout         string         `hcl:"timeout,optional"`
	Secrets         []string       `hcl:"secrets,optional"`
	InheritSecrets  bool           `hcl:"inherit_secrets,optional"`
	Matrix          *MatrixBlock   `hcl:"matrix,block"`
	Call            *CallBlock     `hcl:"call,block"`
	Steps           []*Step        `hcl:"step,block"`
}

// MatrixBlock carries the fan-out axes as attributes, each a list of
// strings: `matrix { os = ["ubuntu", "windows"] }`.
type MatrixBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// CallBlock invokes a sub-pipeline template.
type CallBlock struct {
	Template string     `hcl:"template"`
	With     *WithBlock `hcl:"with,block"`
}

// WithBlock carries the template call arguments as attributes.
type WithBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Step represents a `step "name" {}` block.
type Step struct {
	Name      string     `hcl:"name,label"`
	Uses      string     `hcl:"uses"`
	Arguments *Arguments `hcl:"arguments,block"`
}

// Arguments is the raw body of a step's arguments block.
type Arguments struct {
	Body hcl.Body `hcl:",remain"`
}

// Template represents a `template "name" {}` block.
type Template struct {
	Name   string   `hcl:"name,label"`
	Inputs []*Input `hcl:"input,block"`
	Jobs   []*Job   `hcl:"job,block"`
}

// Input declares one typed template input.
type Input struct {
	Name     string         `hcl:"name,label"`
	Type     hcl.Expression `hcl:"type"`
	Optional bool           `hcl:"optional,optional"`
	Default  *cty.Value     `hcl:"default,optional"`
}
