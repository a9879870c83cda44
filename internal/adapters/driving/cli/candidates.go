package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	candidatesLimit int
	candidatesJSON  bool
)

// Score colours of the candidate table.
var (
	highScore = color.New(color.FgGreen)
	midScore  = color.New(color.FgYellow)
	lowScore  = color.New(color.FgRed)
	header    = color.New(color.Bold)
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates [text]",
	Short: "Show scored retrieval candidates",
	Long: `Lists every candidate found for a question with its vector, keyword,
graph and ontology scores and the fused final score.`,
	Args: cobra.ExactArgs(1),
	RunE: runCandidates,
}

func init() {
	candidatesCmd.Flags().IntVarP(&candidatesLimit, "limit", "l", 10, "maximum number of candidates")
	candidatesCmd.Flags().BoolVar(&candidatesJSON, "json", false, "output candidates as JSON")
	rootCmd.AddCommand(candidatesCmd)
}

func runCandidates(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Retrieval == nil {
		return errors.New("retrieval service not configured")
	}

	cands, err := svc.Retrieval.GatherCandidates(cmd.Context(), args[0], nil)
	if err != nil {
		return fmt.Errorf("gather candidates: %w", err)
	}
	if candidatesLimit > 0 && len(cands) > candidatesLimit {
		cands = cands[:candidatesLimit]
	}

	if candidatesJSON {
		data, err := json.MarshalIndent(cands, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal candidates: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	out := cmd.OutOrStdout()
	header.Fprintf(out, "%-4s %-7s %-7s %-7s %-7s %-7s %-16s %s\n", //nolint:errcheck
		"#", "final", "vector", "keyword", "graph", "onto", "tags", "chunk")
	for i, c := range cands {
		scoreColor(c.FinalScore).Fprintf(out, "%-4d %-7.3f", i+1, c.FinalScore) //nolint:errcheck
		fmt.Fprintf(out, " %-7.3f %-7.3f %-7.3f %-7.3f %-16s %s\n",
			c.VectorScore, c.KeywordScore, c.GraphScore, c.OntologyScore,
			strings.Join(c.Tags, ","), snippet(c.Chunk, 60))
	}
	return nil
}

func scoreColor(score float32) *color.Color {
	switch {
	case score >= 0.5:
		return highScore
	case score >= 0.2:
		return midScore
	default:
		return lowScore
	}
}
