// Package hclcfg is the HCL implementation of the pipeline definition
// loader. It discovers .hcl files, decodes them against the schema
// package, and translates the result into the format-agnostic config
// model.
package hclcfg

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/Nr18/shipline/internal/config"
	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/schema"
)

// Loader implements config.Loader for HCL definition files.
type Loader struct{}

// NewLoader returns a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file reachable from the given paths and merges
// them into a single model. Any diagnostic is a plan-time fatal error.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := discover(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl definition files found in %v", paths)
	}
	logger.Debug("Discovered definition files.", "count", len(files))

	parser := hclparse.NewParser()
	model := &config.Model{Templates: make(map[string]*config.Template)}
	seenPipelines := make(map[string]string)

	for _, path := range files {
		hclFile, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
		}

		var f schema.File
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
		}

		for _, p := range f.Pipelines {
			if prev, ok := seenPipelines[p.Name]; ok {
				return nil, fmt.Errorf("pipeline %q declared in both %s and %s", p.Name, prev, path)
			}
			seenPipelines[p.Name] = path

			translated, err := translatePipeline(p)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			model.Pipelines = append(model.Pipelines, translated)
		}

		for _, tpl := range f.Templates {
			if _, ok := model.Templates[tpl.Name]; ok {
				return nil, fmt.Errorf("%s: duplicate template %q", path, tpl.Name)
			}
			translated, err := translateTemplate(tpl)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			model.Templates[tpl.Name] = translated
		}
	}

	if err := validateModel(model); err != nil {
		return nil, err
	}
	logger.Debug("Definition model loaded.", "pipelines", len(model.Pipelines), "templates", len(model.Templates))
	return model, nil
}

// discover expands each path into the sorted set of .hcl files it refers
// to: the file itself, or every .hcl file under the directory.
func discover(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read definition path %q: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(p, ".hcl") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %q: %w", path, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// validateModel checks cross-file references once everything is merged.
func validateModel(model *config.Model) error {
	checkJobs := func(owner string, jobs []*config.Job) error {
		names := make(map[string]struct{}, len(jobs))
		for _, job := range jobs {
			if _, ok := names[job.Name]; ok {
				return fmt.Errorf("%s: duplicate job %q", owner, job.Name)
			}
			names[job.Name] = struct{}{}

			if job.Call != nil {
				if len(job.Steps) > 0 {
					return fmt.Errorf("%s: job %q has both a template call and steps", owner, job.Name)
				}
				if _, ok := model.Templates[job.Call.Template]; !ok {
					return fmt.Errorf("%s: job %q calls unknown template %q", owner, job.Name, job.Call.Template)
				}
			}
		}
		return nil
	}

	for _, p := range model.Pipelines {
		if err := checkJobs("pipeline "+p.Name, p.Jobs); err != nil {
			return err
		}
	}
	for _, tpl := range model.Templates {
		for _, job := range tpl.Jobs {
			if job.Call != nil {
				return fmt.Errorf("template %s: job %q: nested template calls are not supported", tpl.Name, job.Name)
			}
		}
		if err := checkJobs("template "+tpl.Name, tpl.Jobs); err != nil {
			return err
		}
	}
	return nil
}

var _ config.Loader = (*Loader)(nil)
