package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"baws-workers/internal/agents/persona"
	"baws-workers/internal/agents/router"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/common/validation"
	"baws-workers/pkg/registry"
)

type options struct {
	agentsDir    string
	promptsDir   string
	catalogPath  string
	registryPath string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "agents-check",
		Short:         "Inspect BA agent personas, the conversation catalog and worker activities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.agentsDir, "agents-dir", "configs/agents", "directory holding <id>.agent.yaml files")
	root.PersistentFlags().StringVar(&opts.promptsDir, "prompts-dir", "", "activation prompt directory (default: <agents-dir>/../prompts)")
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "configs/conversation-agents.yaml", "conversation agent catalog")
	root.PersistentFlags().StringVar(&opts.registryPath, "registry", "", "activity registry file (default: the one built into the workers)")

	root.AddCommand(
		newValidateCmd(opts),
		newPromptCmd(opts),
		newActivitiesCmd(opts),
	)
	return root
}

func (o *options) personas() (*persona.Registry, error) {
	prompts := o.promptsDir
	if prompts == "" {
		prompts = filepath.Join(filepath.Dir(o.agentsDir), "prompts")
	}
	return persona.NewRegistry(o.agentsDir, prompts, logger.NewNoOpLogger())
}

func (o *options) activities() (*registry.ActivityRegistry, error) {
	if o.registryPath == "" {
		return registry.Default()
	}
	return registry.LoadRegistry(o.registryPath)
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every persona, the catalog and the activity registry and report problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			problems, err := validateAll(opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintln(w, "all agent configuration is valid")
				return nil
			}
			for _, p := range problems {
				fmt.Fprintln(w, "-", p)
			}
			return fmt.Errorf("%d problem(s) found", len(problems))
		},
	}
}

// validateAll collects every problem instead of stopping at the first.
func validateAll(opts *options) ([]string, error) {
	var problems []string

	reg, err := opts.personas()
	if err != nil {
		return nil, err
	}
	for _, id := range persona.AgentOrder {
		if _, err := reg.BuildSystemPrompt(id); err != nil {
			problems = append(problems, fmt.Sprintf("persona %s: %v", id, err))
		}
	}

	catalog, err := router.NewCatalog(opts.catalogPath)
	if err != nil {
		return nil, err
	}
	entries, err := catalog.Entries()
	switch {
	case err != nil:
		problems = append(problems, fmt.Sprintf("catalog: %v", err))
	case len(entries) == 0:
		problems = append(problems, fmt.Sprintf("catalog %s has no agents; replies will use the fallback agent", opts.catalogPath))
	default:
		seen := map[string]bool{}
		for _, e := range entries {
			if seen[e.ID] {
				problems = append(problems, fmt.Sprintf("catalog: duplicate agent id %q", e.ID))
			}
			seen[e.ID] = true
			if e.Responsibility == "" && e.Description == "" {
				problems = append(problems, fmt.Sprintf("catalog: agent %q has neither responsibility nor description", e.ID))
			}
		}
	}

	acts, err := opts.activities()
	if err != nil {
		problems = append(problems, fmt.Sprintf("activity registry: %v", err))
		return problems, nil
	}
	for _, a := range acts.Activities {
		if err := validation.ValidateActivityNaming(a.ID); err != nil {
			problems = append(problems, fmt.Sprintf("activity %s: %v", a.ID, err))
		}
		if _, err := validation.Compile(a.InputSchema); err != nil {
			problems = append(problems, fmt.Sprintf("activity %s: input schema: %v", a.ID, err))
		}
		if _, err := a.TimeoutDuration(); err != nil {
			problems = append(problems, err.Error())
		}
		if !a.RaisesError("VALIDATION_ERROR") {
			problems = append(problems, fmt.Sprintf("activity %s: does not declare VALIDATION_ERROR", a.ID))
		}
	}
	return problems, nil
}

func newPromptCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <agent-id>",
		Short: "Print the system prompt an analysis agent is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.personas()
			if err != nil {
				return err
			}
			prompt, err := reg.BuildSystemPrompt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		},
	}
}

func newActivitiesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "activities",
		Short: "List the worker activities and their job settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			acts, err := opts.activities()
			if err != nil {
				return err
			}
			list := append([]registry.Activity(nil), acts.Activities...)
			sort.Slice(list, func(i, j int) bool { return list[i].TaskType < list[j].TaskType })

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK TYPE\tID\tTIMEOUT\tRETRIES\tSTATUS")
			for _, a := range list {
				timeout := "worker default"
				if d, err := a.TimeoutDuration(); err != nil {
					timeout = "invalid"
				} else if d > 0 {
					timeout = d.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", a.TaskType, a.ID, timeout, a.Retries, a.ImplementationStatus)
			}
			return tw.Flush()
		},
	}
}
