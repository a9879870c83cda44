package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage ontology classification rules",
	Long: `Ontology rules map lower-case text patterns to tags. A chunk receives
the tag of every rule whose pattern it contains. Rules are read when an
ingestion run starts; without stored rules the project, domain and company
defaults apply.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ontology rules",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add [tag] [pattern...]",
	Short: "Add patterns for a tag",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRulesAdd,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Rules == nil {
		return errors.New("rule store not configured")
	}

	rules, err := svc.Rules.LoadOntologyRules(cmd.Context())
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if len(rules) == 0 {
		cmd.Println("No rules stored. Defaults apply:")
		rules = domain.DefaultOntologyRules()
	}
	for _, r := range rules {
		cmd.Printf("  %-24s -> %s\n", r.Pattern, r.Tag)
	}
	return nil
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Rules == nil {
		return errors.New("rule store not configured")
	}

	tag, patterns := args[0], args[1:]
	if err := svc.Rules.SaveOntologyRule(cmd.Context(), tag, patterns); err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	cmd.Printf("Added %d pattern(s) for tag %s.\n", len(patterns), tag)
	return nil
}
