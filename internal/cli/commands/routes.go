package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kwai-club/kwai/internal/api"
	"github.com/kwai-club/kwai/internal/cli/ui"
	"github.com/kwai-club/kwai/internal/web/ratelimit"
)

func newRoutesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the API routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				cmd.PrintErr(ui.ConfigError(err.Error(), opts.noColor))
				return err
			}

			// Routes are only listed; no handler runs, so no database or redis
			// is needed.
			apiOpts := api.Options{Config: cfg}
			if cfg.Security.LoginLimit > 0 {
				limiter := ratelimit.NewTokenBucket(cfg.Security.LoginLimit, cfg.Security.LoginWindow)
				defer limiter.Close()
				apiOpts.LoginLimiter = limiter
			}
			r, err := api.New(apiOpts)
			if err != nil {
				return err
			}

			table := ui.NewTable(cmd.OutOrStdout(), []string{"METHOD", "PATTERN", "NAME", "RESOURCE", "MIDDLEWARE"}, &ui.TableOptions{NoColor: opts.noColor})
			for _, route := range r.Routes() {
				resource := route.Resource
				if op := route.Operation.String(); op != "" {
					resource += " (" + op + ")"
				}
				table.AddRow(route.Method, route.Pattern, route.Name, resource, strings.Join(route.Middleware, ", "))
			}
			table.Render()
			return nil
		},
	}
}
