package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/claim-workflow/internal/container"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
)

// operator is the actor the CLI exports as
var operator = identity.Identity{DisplayName: "claimsadmin", Role: identity.RoleAdmin}

func newExportCmd(a *app) *cobra.Command {
	var (
		status string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write claims in a status to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = fmt.Sprintf("claims-%s-%s.xlsx", strings.ToLower(status), time.Now().Format("20060102"))
			}

			return a.withContainer(cmd.Context(), func(c *container.Container) error {
				data, err := c.Services().Report.ExportClaims(cmd.Context(), operator, status)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "APPROVED", "claim status to export")
	cmd.Flags().StringVar(&out, "out", "", "output file (default claims-<status>-<date>.xlsx)")
	return cmd
}
