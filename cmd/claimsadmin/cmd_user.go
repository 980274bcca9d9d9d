package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/garyjia/claim-workflow/internal/application/service"
	"github.com/garyjia/claim-workflow/internal/container"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}
	cmd.AddCommand(newUserAddCmd(a), newUserListCmd(a), newUserSetManagerCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var (
		name      string
		role      string
		managerID int64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := identity.ParseRole(role)
			if err != nil {
				return err
			}

			return a.withContainer(cmd.Context(), func(c *container.Container) error {
				user, err := c.Services().Directory.CreateUser(cmd.Context(), service.NewUser{
					DisplayName: name,
					Role:        r,
					ManagerID:   managerID,
				})
				if err != nil {
					return err
				}
				return a.printUsers(cmd, []*identity.Identity{user})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "EMPLOYEE", "EMPLOYEE, MANAGER, FINANCE or ADMIN")
	cmd.Flags().Int64Var(&managerID, "manager", 0, "manager user id (required for employees)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(c *container.Container) error {
				users, err := c.Services().Directory.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				return a.printUsers(cmd, users)
			})
		},
	}
}

func newUserSetManagerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-manager <user-id> <manager-id>",
		Short: "Change who a user reports to (0 clears it)",
		Long: "Change who a user reports to. Decisions already recorded on claims keep their\n" +
			"original actor; only future manager decisions use the new assignment.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			managerID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || managerID < 0 {
				return fmt.Errorf("invalid manager id %q", args[1])
			}

			return a.withContainer(cmd.Context(), func(c *container.Container) error {
				user, err := c.Services().Directory.SetManager(cmd.Context(), userID, managerID)
				if err != nil {
					return err
				}
				return a.printUsers(cmd, []*identity.Identity{user})
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
