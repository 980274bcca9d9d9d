package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/claim-workflow/internal/domain/identity"
)

func (a *app) printUsers(cmd *cobra.Command, users []*identity.Identity) error {
	if a.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tMANAGER")
	for _, u := range users {
		manager := "-"
		if u.HasManager() {
			manager = strconv.FormatInt(u.ManagerID, 10)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.DisplayName, u.Role, manager)
	}
	return w.Flush()
}
