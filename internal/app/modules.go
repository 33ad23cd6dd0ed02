package app

import (
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/modules/command"
	"github.com/vk/buildgrid/modules/env_vars"
	"github.com/vk/buildgrid/modules/fetch_version"
	"github.com/vk/buildgrid/modules/files"
	"github.com/vk/buildgrid/modules/http_request"
	"github.com/vk/buildgrid/modules/print"
	"github.com/vk/buildgrid/modules/set"
	"github.com/vk/buildgrid/modules/sleep"
	"github.com/vk/buildgrid/modules/socketio_emit"
	"github.com/vk/buildgrid/modules/upload"
)

// coreModules returns every module compiled into the buildgrid binary.
// Modules holding clients are created fresh for each App.
func coreModules() []registry.Module {
	return []registry.Module{
		&command.Module{},
		&env_vars.Module{},
		&fetch_version.Module{},
		&files.Module{},
		&http_request.Module{},
		&print.Module{},
		&set.Module{},
		&sleep.Module{},
		&socketio_emit.Module{},
		&upload.Module{},
	}
}
