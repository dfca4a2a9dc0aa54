package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/eventflow/cmd/eventflow/cmd/resolve"
	"github.com/agentstation/eventflow/cmd/eventflow/cmd/serve"
	"github.com/agentstation/eventflow/cmd/eventflow/cmd/version"
)

// CreateServeCommand creates the serve command with app dependencies.
func (a *App) CreateServeCommand() *cobra.Command {
	return serve.NewCommand(a)
}

// CreateResolveCommand creates the resolve command with app dependencies.
func (a *App) CreateResolveCommand() *cobra.Command {
	return resolve.NewCommand(a)
}

// CreateVersionCommand creates the version command.
func (a *App) CreateVersionCommand() *cobra.Command {
	return version.NewCommand(a)
}
