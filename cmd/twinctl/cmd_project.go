package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"twincore/pkg/domain"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the empty project buckets that do not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.project.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "project %s ready (%s)\n", a.cfg.ProjectName(), a.project.Backend().Driver())
			return nil
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Rewrite every bucket, persisting load repairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.project.SaveAll(cmd.Context())
		},
	}
}

func newAssignCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign SYSTEM_CODE TECHNOLOGY_CODE",
		Short: "Assign an existing technology to a system",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.project.AssignTechnology(cmd.Context(), args[0], args[1])
		},
	}
}

func newUnassignCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign SYSTEM_CODE TECHNOLOGY_CODE",
		Short: "Remove a technology from a system",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.project.UnassignTechnology(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: %s is not assigned to %s", domain.ErrInvalidArgument, args[1], args[0])
			}
			return nil
		},
	}
}

func newConnectCmd(a *app) *cobra.Command {
	var label, description string
	cmd := &cobra.Command{
		Use:   "connect SOURCE TYPE TARGET",
		Short: "Add a typed connection between two codes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.project.Connect(cmd.Context(), args[0], args[1], label, args[2], description)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "type label; required for CUST")
	cmd.Flags().StringVarP(&description, "description", "d", "", "free-text description")
	return cmd
}

func newDisconnectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect ID",
		Short: "Remove a connection by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.project.Connections.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: no connection %s", domain.ErrInvalidArgument, args[0])
			}
			return nil
		},
	}
}

func newConnectionsCmd(a *app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "connections CODE",
		Short: "List the connections of a code with resolved endpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			for _, view := range a.project.Resolver().Connections(args[0], r) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", view.Connection.ID, view)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "either", "source, target or either")
	return cmd
}

// exportDocument is the whole project as written by export.
type exportDocument struct {
	Project            string              `json:"project"`
	Systems            []domain.Entity     `json:"systems"`
	Technologies       []domain.Entity     `json:"technologies"`
	ConnectionElements []domain.Entity     `json:"connection_elements"`
	Connections        []domain.Connection `json:"connections"`
}

func newExportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole project as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc := exportDocument{
				Project:            a.cfg.ProjectName(),
				Systems:            a.project.Systems.List(),
				Technologies:       a.project.Technologies.List(),
				ConnectionElements: a.project.ConnectionElements.List(),
				Connections:        a.project.Connections.List(),
			}
			return writeDocument(cmd.OutOrStdout(), format, doc)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or yaml")
	return cmd
}

// writeDocument renders v as indented JSON, or as YAML with the same keys.
func writeDocument(w io.Writer, format string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch format {
	case "json":
		_, err = fmt.Fprintln(w, string(payload))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(payload, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidArgument, format)
}

func newCheckCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the integrity rules; fails on blocking violations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.project.Check(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if format != "text" {
				if err := writeDocument(w, format, res); err != nil {
					return err
				}
			} else {
				for _, v := range res.Violations {
					fmt.Fprintf(w, "%-5s %-20s %s\n", v.Severity, v.Rule, v.Message)
				}
				fmt.Fprintf(w, "%d blocking, %d warnings\n", res.Count(domain.SeverityBlock), res.Count(domain.SeverityWarn))
			}
			if res.HasBlocking() {
				return fmt.Errorf("integrity check failed with %d blocking violations", res.Count(domain.SeverityBlock))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "text, json or yaml")
	return cmd
}

func newPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove technology refs and connections that no longer resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.project.PruneDangling(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			systems := make([]string, 0, len(report.TechnologyRefs))
			for system := range report.TechnologyRefs {
				systems = append(systems, system)
			}
			sort.Strings(systems)
			for _, system := range systems {
				for _, ref := range report.TechnologyRefs[system] {
					fmt.Fprintf(w, "unassigned %s from %s\n", ref, system)
				}
			}
			for _, c := range report.Connections {
				fmt.Fprintf(w, "removed connection %s (%s -> %s)\n", c.ID, c.Source, c.Target)
			}
			return nil
		},
	}
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the connection type catalogue",
		Args:  cobra.NoArgs,
		// The catalogue is static; no project is opened.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, ct := range domain.ConnectionTypes() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-5s %s\n", ct.ID, ct.Label)
			}
			return nil
		},
	}
}

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe KIND FULL_CODE BEHAVIOR",
		Short: "Render a behavior (summary, lineage, attributes) of an entity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := domain.ParseBehavior(args[2])
			if err != nil {
				return err
			}
			out, err := a.project.Describe(cmd.Context(), parseKind(args[0]), args[1], b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func parseKind(s string) domain.Kind {
	switch s {
	case "system", "systems":
		return domain.KindSystem
	case "tech", "technology", "technologies":
		return domain.KindTechnology
	case "element", "connection_element", "connection_elements":
		return domain.KindConnectionElement
	}
	return domain.Kind(s)
}
