package main

import (
	"fmt"

	"github.com/osvaldoandrade/leaderboards/pkg/domain"

	"github.com/spf13/cobra"
)

func modshipCmd(open func() (*env, error), ui *ui) *cobra.Command {
	var userID, leaderboardID string

	grant := &cobra.Command{
		Use:     "grant",
		Short:   "Make a user moderator of a leaderboard",
		Example: "lbctl modship grant --user-id 3f2c... --leaderboard-id sm64",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("user-id", userID); err != nil {
				return err
			}
			if err := required("leaderboard-id", leaderboardID); err != nil {
				return err
			}
			e, err := open()
			if err != nil {
				return err
			}
			var m *domain.Modship
			err = withSpinner("Granting modship...", func() error {
				var gerr error
				m, gerr = e.modships.Grant(cmd.Context(), userID, leaderboardID)
				return gerr
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s %s moderates %s (%s)\n", ui.ok("[OK]"), m.UserID, m.LeaderboardID, ui.dim(m.ID))
			return nil
		},
	}
	grant.Flags().StringVar(&userID, "user-id", "", "User id")
	grant.Flags().StringVar(&leaderboardID, "leaderboard-id", "", "Leaderboard id")

	var listUser string
	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's modships",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("user-id", listUser); err != nil {
				return err
			}
			e, err := open()
			if err != nil {
				return err
			}
			mods, err := e.modships.ListForUser(cmd.Context(), listUser)
			if err != nil {
				return err
			}
			if len(mods) == 0 {
				fmt.Println(ui.info("[INFO]"), "no modships")
				return nil
			}
			for _, m := range mods {
				fmt.Printf("  %s  %s\n", m.LeaderboardID, ui.dim(m.CreatedAt.Format("2006-01-02")))
			}
			return nil
		},
	}
	list.Flags().StringVar(&listUser, "user-id", "", "User id")

	cmd := &cobra.Command{
		Use:   "modship",
		Short: "Moderator relationship operations",
	}
	cmd.AddCommand(grant, list)
	return cmd
}
