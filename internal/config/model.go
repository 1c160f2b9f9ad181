// Package config defines the format-agnostic representation of pipeline
// definitions, decoupled from the HCL syntax they are written in.
package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified representation of every pipeline and sub-pipeline
// template loaded for one repository.
type Model struct {
	// Pipelines preserves declaration order; the first pipeline whose
	// trigger rules match an event is the entry pipeline for that event.
	Pipelines []*Pipeline
	Templates map[string]*Template
}

// Pipeline is one entry pipeline with its trigger rules and job set.
type Pipeline struct {
	Name string
	On   []*TriggerRule
	Jobs []*Job
}

// TriggerRule matches a class of trigger events. Event is "pull_request"
// or "push"; for push rules, Branches and Tags are glob patterns narrowing
// the refs the rule fires on.
type TriggerRule struct {
	Event    string
	Branches []string
	Tags     []string
}

// Job is a declarative unit of work. A job either carries Steps or a
// template Call, never both.
type Job struct {
	Name            string
	Needs           []string
	RequiresSuccess bool
	When            hcl.Expression
	Matrix          *Matrix
	Timeout         time.Duration
	Secrets         []string
	InheritSecrets  bool
	Steps           []*Step
	Call            *TemplateCall
}

// Matrix declares fan-out axes; the job expands into one instance per
// combination of axis values.
type Matrix struct {
	Axes map[string][]string
}

// Step is one collaborator invocation inside a job. Arguments is the raw
// body of the step's arguments block; it is decoded against the runner's
// input struct at execution time, with matrix and input values in scope.
type Step struct {
	Name      string
	Uses      string
	Arguments hcl.Body
}

// TemplateCall invokes a named sub-pipeline template. With holds the call
// arguments as unevaluated expressions so that each matrix instance of the
// calling job can bind them against its own axis values.
type TemplateCall struct {
	Template string
	With     map[string]hcl.Expression
}

// Template is a named, parameterized group of jobs invocable from
// multiple call sites.
type Template struct {
	Name   string
	Inputs map[string]*InputDefinition
	Jobs   []*Job
}

// InputDefinition is one typed template input.
type InputDefinition struct {
	Name     string
	Type     cty.Type
	Default  *cty.Value
	Optional bool
}
