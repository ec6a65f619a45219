package commands

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/kwai-club/kwai/internal/cli/ui"
	"github.com/kwai-club/kwai/internal/database"
	"github.com/kwai-club/kwai/internal/identity"
	"github.com/kwai-club/kwai/internal/web/auth"
)

type userFlags struct {
	Email     string `validate:"required,email"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Password  string `validate:"required,min=8,max=72"`
}

func newUserCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	flags := &userFlags{}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user that can log in to the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(cmd, opts, flags)
		},
	}
	create.Flags().StringVar(&flags.Email, "email", "", "Email address, used as login")
	create.Flags().StringVar(&flags.FirstName, "first-name", "", "First name")
	create.Flags().StringVar(&flags.LastName, "last-name", "", "Last name")
	create.Flags().StringVar(&flags.Password, "password", "", "Password (8 to 72 bytes)")
	cmd.AddCommand(create)

	return cmd
}

func runUserCreate(cmd *cobra.Command, opts *globalOptions, flags *userFlags) error {
	if err := validator.New().Struct(flags); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}
	hash, err := auth.HashPassword(flags.Password)
	if err != nil {
		return err
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		cmd.PrintErr(ui.ConfigError(err.Error(), opts.noColor))
		return err
	}
	db, err := database.Open(cmd.Context(), cfg.Database)
	if err != nil {
		cmd.PrintErr(ui.ConfigError(err.Error(), opts.noColor))
		return err
	}
	defer db.Close()

	user, err := identity.NewDBRepository(db).Create(cmd.Context(), identity.User{
		Email:     flags.Email,
		FirstName: flags.FirstName,
		LastName:  flags.LastName,
		Password:  hash,
	})
	if err != nil {
		return err
	}
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Created user %s (%s)", user.Email, user.UUID), opts.noColor)
	return nil
}
