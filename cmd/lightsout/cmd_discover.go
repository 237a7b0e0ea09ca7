package main

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/lightsout/orchestrator"
)

var discoverGroups []string

// discoverCmd lists managed resources without touching them
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List managed resources",
	Long: `Query the tagging API in every configured region and list the
resources a run would act on, with their priority and group.`,
	Example: `  lightsout discover                 # All managed resources
  lightsout discover --group data    # One group
  lightsout discover -o json         # Machine readable`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringSliceVarP(&discoverGroups, "group", "g", nil, "Only list these groups")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	orch := orchestrator.New(a.cfg, a.discoverer(), a.handlers(), orchestrator.WithGroups(discoverGroups...))
	resources, err := orch.DiscoverResources(ctx)
	if err != nil {
		return err
	}
	return printResources(cmd.OutOrStdout(), resources, outputFormat)
}
