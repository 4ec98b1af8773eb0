package main

import (
	"fmt"
	"strings"
	"twincore/internal/core"
	"twincore/pkg/domain"

	"github.com/spf13/cobra"
)

const (
	kindSystem     = domain.KindSystem
	kindTechnology = domain.KindTechnology
	kindElement    = domain.KindConnectionElement
)

func (a *app) store(kind domain.Kind) *core.EntityStore {
	s, _ := a.project.Store(kind)
	return s
}

func newEntityCmd(a *app, use, short string, kind domain.Kind) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(
		newAddCmd(a, kind),
		newUpdateCmd(a, kind),
		newDeleteCmd(a, kind),
		newAttrCmd(a, kind),
		newTreeCmd(a, kind),
		newShowCmd(a, kind),
	)
	return cmd
}

func newAddCmd(a *app, kind domain.Kind) *cobra.Command {
	var parent, description string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: fmt.Sprintf("Create a %s, as a root or under --parent", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.store(kind).Create(cmd.Context(), args[0], description, parent)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.FullCode)
			return nil
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "full code of the parent")
	cmd.Flags().StringVarP(&description, "description", "d", "", "free-text description")
	return cmd
}

func newUpdateCmd(a *app, kind domain.Kind) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update FULL_CODE",
		Short: fmt.Sprintf("Rename or re-describe a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, ok := a.store(kind).Get(args[0])
			if !ok {
				return fmt.Errorf("%w: no %s with full code %s", domain.ErrInvalidArgument, kind, args[0])
			}
			if !cmd.Flags().Changed("description") {
				description = current.Description
			}
			e, _, err := a.store(kind).Update(cmd.Context(), args[0], name, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s | %s\n", e.Name, e.FullCode)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "new name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func newDeleteCmd(a *app, kind domain.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "delete FULL_CODE",
		Short: fmt.Sprintf("Delete a %s and all of its descendants", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.store(kind).Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				return fmt.Errorf("%w: no %s with full code %s", domain.ErrInvalidArgument, kind, args[0])
			}
			for _, code := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}
}

func newAttrCmd(a *app, kind domain.Kind) *cobra.Command {
	types := make([]string, 0, 4)
	for _, t := range domain.AttributeTypes() {
		types = append(types, string(t))
	}
	return &cobra.Command{
		Use:   "attr FULL_CODE TYPE DESCRIPTION",
		Short: "Set an attribute (" + strings.Join(types, ", ") + ")",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.store(kind).Get(args[0]); !ok {
				return fmt.Errorf("%w: no %s with full code %s", domain.ErrInvalidArgument, kind, args[0])
			}
			return a.store(kind).AddAttribute(cmd.Context(), args[0], args[1], args[2])
		},
	}
}

func newTreeCmd(a *app, kind domain.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: fmt.Sprintf("Print the %s hierarchy", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			a.store(kind).Walk(func(e domain.Entity, depth int) bool {
				fmt.Fprintf(w, "%s%s | %s\n", strings.Repeat("  ", depth), e.Name, e.FullCode)
				return true
			})
			return nil
		},
	}
}

func newShowCmd(a *app, kind domain.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "show FULL_CODE",
		Short: fmt.Sprintf("Print a %s with its resolved references", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store(kind)
			e, ok := store.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: no %s with full code %s", domain.ErrInvalidArgument, kind, args[0])
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "name:        %s\n", e.Name)
			fmt.Fprintf(w, "description: %s\n", e.Description)
			fmt.Fprintf(w, "code:        %s (level %d, index %d)\n", e.Code, e.Level, e.SiblingIndex)
			fmt.Fprintf(w, "full code:   %s\n", e.FullCode)
			fmt.Fprintf(w, "parent:      %s\n", e.ParentCode)
			for _, t := range e.SortedAttributes() {
				fmt.Fprintf(w, "attribute:   %s: %s\n", t, e.Attributes[t])
			}
			resolver := a.project.Resolver()
			for _, child := range resolver.Children(store, e.FullCode) {
				fmt.Fprintf(w, "child:       %s\n", child)
			}
			if kind == domain.KindSystem {
				for _, tech := range resolver.Technologies(e.FullCode) {
					fmt.Fprintf(w, "technology:  %s\n", tech)
				}
			}
			return nil
		},
	}
}
