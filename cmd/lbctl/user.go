package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/osvaldoandrade/leaderboards/internal/services"
	"github.com/osvaldoandrade/leaderboards/pkg/domain"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// importEntry is one account in a `user import` file.
type importEntry struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Admin    bool   `yaml:"admin"`
}

type importFile struct {
	Users []importEntry `yaml:"users"`
}

type importReport struct {
	Created []*domain.User
	Skipped []string
	Failed  map[string]error
}

func userCmd(open func() (*env, error), ui *ui) *cobra.Command {
	var email, username string
	var admin bool

	create := &cobra.Command{
		Use:     "create",
		Short:   "Create a user, prompting for the password",
		Example: "lbctl user create --email admin@example.com --username admin --admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := required("email", email); err != nil {
				return err
			}
			if err := required("username", username); err != nil {
				return err
			}
			e, err := open()
			if err != nil {
				return err
			}
			password, err := promptSecret("Password")
			if err != nil {
				return err
			}
			var user *domain.User
			err = withSpinner("Creating user...", func() error {
				var cerr error
				user, cerr = e.accounts.CreateUser(cmd.Context(), username, email, password, admin)
				return cerr
			})
			if err != nil {
				return err
			}
			kind := "user"
			if user.Admin {
				kind = "admin"
			}
			fmt.Printf("%s %s created: %s\n", ui.ok("[OK]"), kind, user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "Email (login name)")
	create.Flags().StringVar(&username, "username", "", "Display name")
	create.Flags().BoolVar(&admin, "admin", false, "Grant the administrator flag")

	importCmd := &cobra.Command{
		Use:     "import <file.yaml>",
		Short:   "Create users in bulk from a YAML file",
		Example: "lbctl user import users.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			entries, err := parseImportFile(f)
			if err != nil {
				return err
			}
			e, err := open()
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(len(entries),
				progressbar.OptionSetDescription("Importing users"),
				progressbar.OptionSetWidth(18),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			)
			rep := importUsers(cmd.Context(), e.accounts, entries, func() { _ = bar.Add(1) })
			_ = bar.Finish()

			fmt.Printf("%s %d created, %d already present, %d failed\n", ui.ok("[OK]"), len(rep.Created), len(rep.Skipped), len(rep.Failed))
			for email, ferr := range rep.Failed {
				fmt.Printf("  %s %s: %v\n", ui.err("[FAIL]"), email, ferr)
			}
			if len(rep.Failed) > 0 {
				return fmt.Errorf("%d users failed to import", len(rep.Failed))
			}
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "User account operations",
	}
	cmd.AddCommand(create, importCmd)
	return cmd
}

func parseImportFile(r io.Reader) ([]importEntry, error) {
	var f importFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("import file is empty")
		}
		return nil, fmt.Errorf("parse import file: %w", err)
	}
	if len(f.Users) == 0 {
		return nil, errors.New("import file lists no users")
	}
	return f.Users, nil
}

// importUsers creates each entry in order. Existing emails are skipped so a
// partially applied file can be re-run.
func importUsers(ctx context.Context, accounts services.AccountService, entries []importEntry, step func()) importReport {
	rep := importReport{Failed: map[string]error{}}
	for _, en := range entries {
		user, err := accounts.CreateUser(ctx, en.Username, en.Email, en.Password, en.Admin)
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			rep.Skipped = append(rep.Skipped, en.Email)
		case err != nil:
			rep.Failed[en.Email] = err
		default:
			rep.Created = append(rep.Created, user)
		}
		if step != nil {
			step()
		}
	}
	return rep
}
