package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"beacon/internal/directory/models"
)

var contactsJSON bool

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage the contact directory",
	Long: `Manage the contact directory directly against the configured store.

Roles are comma separated: ADMIN, STAFF, SUBSCRIBER. SUPERVISOR is accepted
as ADMIN. With the memory store, changes only last for the command.`,
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		contacts, err := a.directory.ListContacts(cmd.Context())
		if err != nil {
			return err
		}
		return printContacts(cmd.OutOrStdout(), contacts...)
	},
}

var contactsAddCmd = &cobra.Command{
	Use:   "add <name> <phone> <roles>",
	Short: "Add a contact",
	Long: `Add a contact.

Examples:
  beacon contacts add "Alice" +15551230001 STAFF
  beacon contacts add "Carol" +15551230003 ADMIN,SUBSCRIBER`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		contact, err := a.directory.CreateContact(cmd.Context(), args[0], args[1], splitRoles(args[2]))
		if err != nil {
			return err
		}
		return printContacts(cmd.OutOrStdout(), contact)
	},
}

var contactsSetRolesCmd = &cobra.Command{
	Use:   "set-roles <phone> <roles>",
	Short: "Replace a contact's roles",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		contact, err := a.directory.ReplaceRoles(cmd.Context(), args[0], splitRoles(args[1]))
		if err != nil {
			return err
		}
		return printContacts(cmd.OutOrStdout(), contact)
	},
}

var contactsRemoveCmd = &cobra.Command{
	Use:   "remove <phone>",
	Short: "Remove every contact with the given phone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.directory.Remove(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d contact(s)\n", removed)
		return nil
	},
}

func init() {
	contactsCmd.PersistentFlags().BoolVar(&contactsJSON, "json", false, "print contacts as JSON")
	contactsCmd.AddCommand(contactsListCmd)
	contactsCmd.AddCommand(contactsAddCmd)
	contactsCmd.AddCommand(contactsSetRolesCmd)
	contactsCmd.AddCommand(contactsRemoveCmd)
}

func splitRoles(arg string) []string {
	var tokens []string
	for _, tok := range strings.Split(arg, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func printContacts(w io.Writer, contacts ...*models.Contact) error {
	if contactsJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(contacts)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHONE\tNAME\tROLES\tID")
	for _, c := range contacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.PhoneNumber, c.Name, strings.Join(c.Roles.Strings(), ","), c.ID)
	}
	return tw.Flush()
}
