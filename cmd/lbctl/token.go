package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/osvaldoandrade/leaderboards/internal/metrics"
	"github.com/osvaldoandrade/leaderboards/pkg/auth"

	"github.com/spf13/cobra"
)

func tokenCmd(open func() (*env, error), ui *ui) *cobra.Command {
	var userID, email string

	issue := &cobra.Command{
		Use:     "issue",
		Short:   "Sign a session token for a user",
		Example: "lbctl token issue --user-id 3f2c... --email x@y.com",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("user-id", userID); err != nil {
				return err
			}
			e, err := open()
			if err != nil {
				return err
			}
			tok, err := e.codec.Issue(auth.Identity{UserID: userID, Email: email})
			if err != nil {
				return err
			}
			metrics.TokensIssuedTotal.WithLabelValues("cli").Inc()
			fmt.Fprintf(os.Stderr, "%s token for %s expires in %s\n", ui.ok("[OK]"), userID, e.codec.TTL())
			fmt.Println(tok)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user-id", "", "Subject (user id)")
	issue.Flags().StringVar(&email, "email", "", "Email claim")

	verify := &cobra.Command{
		Use:   "verify <token>",
		Short: "Check a token against the configured key and issuer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			raw, ok := auth.TryExtract("Bearer " + args[0])
			if !ok {
				return errors.New("empty token")
			}
			id, ok := e.codec.Validate(raw)
			if !ok {
				return fmt.Errorf("token %s is not valid", maskToken(raw))
			}
			fmt.Printf("%s valid\n  %s %s\n  %s %s\n", ui.ok("[OK]"), ui.dim("sub:"), id.UserID, ui.dim("email:"), id.Email)
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Session token operations",
	}
	cmd.AddCommand(issue, verify)
	return cmd
}
