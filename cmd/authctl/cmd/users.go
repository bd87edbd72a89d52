package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var (
	createEmail     string
	createPassword  string
	createRole      string
	createFirstname string
	createLastname  string
	createStdin     bool
	listLimit       int
	listOffset      int
)

func init() {
	createCmd.Flags().StringVar(&createEmail, "email", "", "Login email of the account")
	createCmd.Flags().StringVar(&createPassword, "password", "", "Password (use --stdin to avoid shell history)")
	createCmd.Flags().StringVar(&createRole, "role", string(entity.RoleUser), "Role: USER or ADMIN")
	createCmd.Flags().StringVar(&createFirstname, "firstname", "", "First name")
	createCmd.Flags().StringVar(&createLastname, "lastname", "", "Last name")
	createCmd.Flags().BoolVar(&createStdin, "stdin", false, "Read password from stdin")

	listCmd.Flags().IntVar(&listLimit, "limit", 100, "Maximum rows to print")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Rows to skip")

	usersCmd.AddCommand(createCmd, listCmd, enableCmd, disableCmd, roleCmd)
}

// withUsers opens the database and hands the account service to fn.
func withUsers(fn func(ctx context.Context, svc *user.Service, repo *userrepo.UserRepo) error) error {
	db, err := database.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	repo := userrepo.NewUserRepo(db)
	return fn(context.Background(), user.NewService(repo), repo)
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an enabled account, e.g. the first ADMIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := mail.ParseAddress(createEmail); err != nil {
			return fmt.Errorf("invalid --email: %w", err)
		}
		role, err := entity.ParseRole(createRole)
		if err != nil {
			return err
		}
		password := createPassword
		if createStdin {
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			scanner := bufio.NewScanner(os.Stdin)
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read password: %w", err)
			}
		}
		if password == "" {
			return errors.New("password is required (use --password or --stdin)")
		}
		hash, err := user.HasherFromEnv().Hash(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		return withUsers(func(ctx context.Context, _ *user.Service, repo *userrepo.UserRepo) error {
			u, err := repo.Save(ctx, &entity.User{
				ID:           utilities.NewSnowflakeID(),
				Firstname:    createFirstname,
				Lastname:     createLastname,
				Email:        createEmail,
				PasswordHash: hash,
				Role:         role,
				Enabled:      true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%d) as %s\n", u.Email, u.ID, u.Role)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUsers(func(ctx context.Context, svc *user.Service, _ *userrepo.UserRepo) error {
			users, err := svc.List(ctx, listLimit, listOffset)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tENABLED\tCREATED_AT")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\n",
					u.ID,
					u.Email,
					strings.TrimSpace(u.Firstname+" "+u.Lastname),
					u.Role,
					u.Enabled,
					u.CreatedAt.Format("2006-01-02 15:04:05"),
				)
			}
			return w.Flush()
		})
	},
}

func setEnabledCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(func(ctx context.Context, svc *user.Service, _ *userrepo.UserRepo) error {
				u, err := svc.SetEnabledByEmail(ctx, args[0], enabled)
				if err != nil {
					return fmt.Errorf("%s %s: %w", use, args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s enabled=%t\n", u.Email, u.Enabled)
				return nil
			})
		},
	}
}

var (
	enableCmd  = setEnabledCmd("enable", true)
	disableCmd = setEnabledCmd("disable", false)
)

var roleCmd = &cobra.Command{
	Use:   "role <email> <USER|ADMIN>",
	Short: "Change the role of an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUsers(func(ctx context.Context, svc *user.Service, _ *userrepo.UserRepo) error {
			u, err := svc.SetRoleByEmail(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("set role for %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s role=%s\n", u.Email, u.Role)
			return nil
		})
	},
}
