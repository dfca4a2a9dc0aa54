// Package version provides the eventflow version command.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/eventflow/cmd/application"
	"github.com/agentstation/eventflow/internal/cmd/output"
)

// Info is the build information of the running binary.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	BuiltBy   string `json:"built_by" yaml:"built_by"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// NewInfo collects build information from app.
func NewInfo(app application.Application) Info {
	return Info{
		Version:   app.Version(),
		Commit:    app.Commit(),
		Date:      app.Date(),
		BuiltBy:   app.BuiltBy(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// NewCommand creates the version command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := NewInfo(app)
			switch format := output.Format(app.OutputFormat()); format {
			case output.FormatJSON, output.FormatYAML:
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), info)
			default:
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "eventflow %s\n", info.Version)
				fmt.Fprintf(w, "  commit:   %s\n", info.Commit)
				fmt.Fprintf(w, "  built:    %s\n", info.Date)
				fmt.Fprintf(w, "  built by: %s\n", info.BuiltBy)
				fmt.Fprintf(w, "  go:       %s (%s)\n", info.GoVersion, info.Platform)
				return nil
			}
		},
	}
}
