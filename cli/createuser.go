package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autocatalog/email"
	"autocatalog/logger"
	"autocatalog/media"
	"autocatalog/users"
)

var createUserOpts struct {
	username string
	email    string
	password string
	staff    bool
}

var createUserCmd = &cobra.Command{
	Use:   "createuser",
	Short: "Create a user account",
	Long:  "Creates an active user account with its profile. Use --staff for back office access.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := setup(false)
		if err != nil {
			return err
		}
		defer logger.Sync()

		usersModule := users.NewUsersModule(db, email.New(cfg.SMTP), media.NewStore(cfg.MediaDir))
		user, err := usersModule.CreateUser(cmd.Context(), users.RegisterInput{
			Username:  createUserOpts.username,
			Email:     createUserOpts.email,
			Password1: createUserOpts.password,
			Password2: createUserOpts.password,
		}, createUserOpts.staff)
		if err != nil {
			return err
		}

		logger.L().Info("user created", zap.Uint("user_id", user.ID), zap.Bool("staff", user.IsStaff))
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	f := createUserCmd.Flags()
	f.StringVar(&createUserOpts.username, "username", "", "login name")
	f.StringVar(&createUserOpts.email, "email", "", "email address")
	f.StringVar(&createUserOpts.password, "password", "", "password, at least 8 characters")
	f.BoolVar(&createUserOpts.staff, "staff", false, "grant back office access")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")
}
