package app

import (
	"github.com/Nr18/shipline/internal/registry"
	"github.com/Nr18/shipline/modules/artifactstep"
	"github.com/Nr18/shipline/modules/cachestep"
	"github.com/Nr18/shipline/modules/docker"
	"github.com/Nr18/shipline/modules/exec"
	"github.com/Nr18/shipline/modules/releasestep"
	"github.com/Nr18/shipline/modules/smoketest"
	"github.com/Nr18/shipline/modules/tagstep"
)

// coreModules is the definitive list of step runner modules compiled into
// the shipline binary.
var coreModules = []registry.Module{
	&exec.Module{},
	&artifactstep.Module{},
	&cachestep.Module{},
	&docker.Module{},
	&smoketest.Module{},
	&releasestep.Module{},
	&tagstep.Module{},
}
