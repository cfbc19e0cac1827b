package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/civicwater/waterboard/internal/access"
	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/civicwater/waterboard/pkg/sdk"
	"github.com/spf13/cobra"
)

// staffFlags are the credentials remote dashboard commands log in with.
type staffFlags struct {
	email string
	role  string
}

func (f *staffFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "as", "", "staff email to log in with")
	cmd.Flags().StringVar(&f.role, "role", string(schema.RoleAuthority), "staff role (authority, admin)")
}

// session returns a client logged in as the staff member named by f.
func (st *state) session(cmd *cobra.Command, f *staffFlags) (*sdk.Client, error) {
	client, err := st.client(cmd)
	if err != nil {
		return nil, err
	}
	if f.email == "" {
		return nil, errors.New("--as is required")
	}
	role, valid := schema.ParseRole(f.role)
	if !valid || role == schema.RoleCitizen {
		return nil, fmt.Errorf("invalid staff role: %s", f.role)
	}
	if _, err := client.Login(cmd.Context(), role, access.MethodEmail, f.email); err != nil {
		return nil, fmt.Errorf("login as %s failed: %w", f.email, err)
	}
	return client, nil
}

func (st *state) client(cmd *cobra.Command) (*sdk.Client, error) {
	return sdk.New(cmd.Context(), st.store.DataDir, sdk.WithLogger(st.logger(cmd)))
}

func noticesCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notices",
		Short: "Read and publish public notices",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List published notices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := st.client(cmd)
			if err != nil {
				return err
			}
			notices, err := client.Notices(cmd.Context())
			if err != nil {
				return err
			}
			if len(notices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), warn("no notices"))
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tTITLE")
			for _, n := range notices {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n.ID, dash(n.Date), dash(n.Category), n.Title)
			}
			return w.Flush()
		},
	}

	var (
		creds staffFlags
		n     schema.Notice
	)
	publish := &cobra.Command{
		Use:   "publish [title]",
		Short: "Publish a notice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := st.session(cmd, &creds)
			if err != nil {
				return err
			}
			n.Title = args[0]
			out, err := client.PublishNotice(cmd.Context(), n)
			if err != nil {
				return fmt.Errorf("failed to publish notice: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Published notice %d: %s\n", check, out.ID, out.Title)
			return nil
		},
	}
	creds.register(publish)
	publish.Flags().StringVar(&n.Body, "body", "", "notice text")
	publish.Flags().StringVar(&n.Category, "category", "", "notice category")
	publish.Flags().StringVar(&n.Date, "date", "", "effective date (YYYY-MM-DD)")

	var delCreds staffFlags
	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Withdraw a notice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id: %s", args[0])
			}
			client, err := st.session(cmd, &delCreds)
			if err != nil {
				return err
			}
			if err := client.DeleteNotice(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted notice %d\n", check, id)
			return nil
		},
	}
	delCreds.register(del)

	cmd.AddCommand(list, publish, del)
	return cmd
}

func complaintsCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complaints",
		Short: "Triage citizen complaints",
	}

	var (
		listCreds staffFlags
		status    string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List complaints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := st.session(cmd, &listCreds)
			if err != nil {
				return err
			}
			complaints, err := client.Complaints(cmd.Context(), status)
			if err != nil {
				return err
			}
			if len(complaints) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), warn("no complaints"))
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REFERENCE\tSTATUS\tAREA\tCATEGORY\tFILES\tRECEIVED")
			for _, c := range complaints {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					c.Reference, statusLabel(c.Status), dash(c.AreaCode), c.Category, len(c.Attachments), c.ReceivedAt)
			}
			return w.Flush()
		},
	}
	listCreds.register(list)
	list.Flags().StringVar(&status, "status", "", "only show this status (New, Viewed, Resolved)")

	var (
		setCreds staffFlags
		notes    string
	)
	set := &cobra.Command{
		Use:   "set [reference] [status]",
		Short: "Change the status of a complaint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := st.session(cmd, &setCreds)
			if err != nil {
				return err
			}
			var np *string
			if cmd.Flags().Changed("notes") {
				np = &notes
			}
			c, err := client.UpdateComplaint(cmd.Context(), args[0], args[1], np)
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n", check, c.Reference, statusLabel(c.Status))
			return nil
		},
	}
	setCreds.register(set)
	set.Flags().StringVar(&notes, "notes", "", "staff notes")

	var delCreds staffFlags
	del := &cobra.Command{
		Use:   "delete [reference]",
		Short: "Delete a complaint and its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := st.session(cmd, &delCreds)
			if err != nil {
				return err
			}
			if err := client.DeleteComplaint(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", check, strings.ToUpper(args[0]))
			return nil
		},
	}
	delCreds.register(del)

	cmd.AddCommand(list, set, del)
	return cmd
}

func statusLabel(s string) string {
	switch s {
	case schema.StatusResolved:
		return s
	case schema.StatusNew:
		return bad(s)
	default:
		return warn(s)
	}
}
