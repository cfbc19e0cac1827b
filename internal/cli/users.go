package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/civicwater/waterboard/internal/access"
	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/spf13/cobra"
)

func usersCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage login accounts",
	}
	cmd.AddCommand(usersAddCmd(st), usersListCmd(st), usersRemoveCmd(st))
	return cmd
}

func usersAddCmd(st *state) *cobra.Command {
	var name, role, email, areaCode string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Example: `  waterboard users add --name "Officer Rao" --role authority --email rao@water.gov
  waterboard users add --name Asha --role citizen --area-code W-12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, valid := schema.ParseRole(role)
			if !valid {
				return fmt.Errorf("invalid role: %s\nValid roles: citizen, authority, admin", role)
			}
			name = strings.TrimSpace(name)
			email = strings.TrimSpace(email)
			areaCode = strings.TrimSpace(areaCode)
			if name == "" {
				return errors.New("--name is required")
			}
			if email == "" && areaCode == "" {
				return errors.New("one of --email or --area-code is required")
			}
			if r != schema.RoleCitizen && email == "" {
				return errors.New("--email is required for staff accounts")
			}

			store, err := st.open(cmd)
			if err != nil {
				return err
			}
			if access.Duplicate(store.Load(schema.Users), r, email, areaCode) {
				return fmt.Errorf("a %s account with that email or area code already exists", r)
			}

			payload := engine.Record{"name": name, "role": string(r)}
			if email != "" {
				payload["email"] = email
			}
			if areaCode != "" {
				payload["areaCode"] = areaCode
			}
			rec, err := store.Append(schema.Users, payload)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s %s (id %s)\n", check, r, name, rec.String(engine.FieldID))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "citizen", "citizen, authority or admin")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&areaCode, "area-code", "", "citizen area code")
	return cmd
}

func usersListCmd(st *state) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := st.open(cmd)
			if err != nil {
				return err
			}
			users, err := engine.List[schema.UserRecord](store, schema.Users)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tROLE\tNAME\tEMAIL\tAREA")
			shown := 0
			for _, u := range users {
				if role != "" && !strings.EqualFold(string(u.Role), role) {
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Role, u.Name, dash(u.Email), dash(u.AreaCode))
				shown++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if shown == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), warn("no users"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only show this role")
	return cmd
}

func usersRemoveCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := st.open(cmd)
			if err != nil {
				return err
			}
			rec, err := store.Delete(schema.Users, engine.ByID(args[0]))
			if errors.Is(err, engine.ErrNotFound) {
				return fmt.Errorf("no user with id %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", check, rec.String("name"))
			return nil
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
