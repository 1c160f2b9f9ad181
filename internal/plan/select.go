package plan

import (
	"fmt"
	"path"

	"github.com/Nr18/shipline/internal/config"
	"github.com/Nr18/shipline/internal/run"
)

// SelectPipeline returns the first pipeline, in declaration order, whose
// trigger rules match the run's trigger. No match is a plan-time error.
func SelectPipeline(model *config.Model, r *run.Run) (*config.Pipeline, error) {
	for _, p := range model.Pipelines {
		for _, rule := range p.On {
			if ruleMatches(rule, r) {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("no pipeline matches trigger %s on %s", r.Kind, r.Ref)
}

// ruleMatches decides whether one trigger rule fires for the run. A bare
// push rule (no branch or tag patterns) matches branch pushes only; tag
// pushes must be opted into explicitly with tag patterns.
func ruleMatches(rule *config.TriggerRule, r *run.Run) bool {
	switch r.Kind {
	case run.TriggerPullRequest:
		return rule.Event == "pull_request"
	case run.TriggerPushBranch:
		if rule.Event != "push" || len(rule.Tags) > 0 {
			return false
		}
		return len(rule.Branches) == 0 || anyGlobMatches(rule.Branches, r.ShortRef())
	case run.TriggerPushTag:
		if rule.Event != "push" || len(rule.Tags) == 0 {
			return false
		}
		return anyGlobMatches(rule.Tags, r.ShortRef())
	default:
		return false
	}
}

func anyGlobMatches(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
