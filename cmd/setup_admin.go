package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camden-git/mediasysfaces/config"
	"github.com/camden-git/mediasysfaces/services"
)

var setupAdminCmd = &cobra.Command{
	Use:   "setup-admin",
	Short: "Create an administrator holding every permission",
	Long: `Create a user in the super admin role. Unless --force is given this only
works while the database has no users, like the first-admin API endpoint.`,
	RunE: runSetupAdmin,
}

func init() {
	rootCmd.AddCommand(setupAdminCmd)
	setupAdminCmd.Flags().String("username", "", "Username of the administrator")
	setupAdminCmd.Flags().String("password", "", "Password of the administrator (at least 8 characters)")
	setupAdminCmd.Flags().Bool("force", false, "Create the administrator even when users already exist")
	_ = setupAdminCmd.MarkFlagRequired("username")
	_ = setupAdminCmd.MarkFlagRequired("password")
}

func runSetupAdmin(cmd *cobra.Command, args []string) error {
	username := mustGetString(cmd, "username")
	password := mustGetString(cmd, "password")
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	setup := services.NewSetupService(a.users, a.roles)
	ctx := context.Background()
	if mustGetBool(cmd, "force") {
		_, err = setup.CreateAdmin(ctx, username, password)
	} else {
		_, err = setup.CreateFirstAdmin(ctx, username, password)
	}
	if err != nil {
		if errors.Is(err, services.ErrSetupCompleted) {
			return errors.New("users already exist; pass --force to add another administrator")
		}
		return err
	}
	fmt.Printf("Administrator '%s' created.\n", username)
	return nil
}
