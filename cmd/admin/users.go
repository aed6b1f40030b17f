package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"quill/internal/forms"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(promoteCmd, demoteCmd, listAdminsCmd, createUserCmd)

	createUserCmd.Flags().String("email", "", "email address (required)")
	createUserCmd.Flags().String("password", "", "password (required)")
	createUserCmd.Flags().Bool("admin", false, "grant admin rights")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")
}

var promoteCmd = &cobra.Command{
	Use:   "promote <user-id-or-username>",
	Short: "Promote user to admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		return setAdmin(cmd.Context(), cmd.OutOrStdout(), repository.NewUserRepository(e.db), args[0], true)
	},
}

var demoteCmd = &cobra.Command{
	Use:   "demote <user-id-or-username>",
	Short: "Demote user from admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		return setAdmin(cmd.Context(), cmd.OutOrStdout(), repository.NewUserRepository(e.db), args[0], false)
	},
}

var listAdminsCmd = &cobra.Command{
	Use:   "list-admins",
	Short: "List all admins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		return listAdmins(cmd.Context(), cmd.OutOrStdout(), repository.NewUserRepository(e.db))
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user <username>",
	Short: "Create an account through the registration form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		admin, _ := cmd.Flags().GetBool("admin")

		e, err := connect()
		if err != nil {
			return err
		}
		users := repository.NewUserRepository(e.db)
		auth := service.NewAuthService(users, e.cfg.JWTSecret)
		return createUser(cmd.Context(), cmd.OutOrStdout(), users, auth, forms.RegisterInput{
			Username:  args[0],
			Email:     email,
			Password1: password,
			Password2: password,
		}, admin)
	},
}

// lookupUser resolves a numeric id or a username.
func lookupUser(ctx context.Context, users repository.UserRepository, ref string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
		user, err = users.GetByID(ctx, uint(id))
	} else {
		user, err = users.GetByUsername(ctx, ref)
	}
	var appErr *models.AppError
	if (err != nil && errors.As(err, &appErr) && appErr.Code == models.CodeNotFound) || (err == nil && user == nil) {
		return nil, fmt.Errorf("user %q not found", ref)
	}
	return user, err
}

func setAdmin(ctx context.Context, out io.Writer, users repository.UserRepository, ref string, isAdmin bool) error {
	user, err := lookupUser(ctx, users, ref)
	if err != nil {
		return err
	}
	if user.IsAdmin == isAdmin {
		state := "an admin"
		if !isAdmin {
			state = "not an admin"
		}
		fmt.Fprintf(out, "User %s (ID: %d) is already %s\n", user.Username, user.ID, state)
		return nil
	}
	if err := users.SetAdmin(ctx, user.ID, isAdmin); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	verb := "promoted"
	if !isAdmin {
		verb = "demoted"
	}
	fmt.Fprintf(out, "✅ Successfully %s %s (ID: %d)\n", verb, user.Username, user.ID)
	return nil
}

func listAdmins(ctx context.Context, out io.Writer, users repository.UserRepository) error {
	admins, err := users.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("fetch admins: %w", err)
	}
	if len(admins) == 0 {
		fmt.Fprintln(out, "No admins found in the system")
		return nil
	}

	fmt.Fprintln(out, "📋 Current Admins:")
	fmt.Fprintln(out, "─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Fprintf(out, "ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	fmt.Fprintln(out, "─────────────────────────────────────")
	return nil
}

func createUser(ctx context.Context, out io.Writer, users repository.UserRepository, auth *service.AuthService, in forms.RegisterInput, admin bool) error {
	user, _, err := auth.Register(ctx, auth.NewRegisterForm(in))
	if err != nil {
		if fieldErrs, ok := forms.AsErrors(err); ok {
			fields := make([]string, 0, len(fieldErrs))
			for field := range fieldErrs {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				for _, msg := range fieldErrs[field] {
					fmt.Fprintf(out, "  %s: %s\n", field, msg)
				}
			}
			return errors.New("registration form is invalid")
		}
		return err
	}
	if admin {
		if err := users.SetAdmin(ctx, user.ID, true); err != nil {
			return fmt.Errorf("grant admin: %w", err)
		}
	}
	fmt.Fprintf(out, "✅ Created %s (ID: %d, admin: %t)\n", user.Username, user.ID, admin)
	return nil
}
