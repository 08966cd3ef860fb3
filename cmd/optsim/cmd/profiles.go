package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quantfork/optsim/internal/domain"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the execution assumption profiles",
	Long: `Profiles prints the fill assumptions behind each named profile:
latency, slippage floors, size penalties, adverse selection and the
mid-fill odds per spread bucket.`,
	Run: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(_ *cobra.Command, _ []string) {
	set := domain.DefaultProfiles()

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.Header("Profile", "Latency", "Slip floor", "Spread%", "SizePen bps", "Adverse bps", "Mid T/N/W")

	for _, name := range []domain.ProfileName{
		domain.ProfileConservative,
		domain.ProfileBase,
		domain.ProfileOptimistic,
	} {
		p, ok := set.Get(name)
		if !ok {
			continue
		}
		tbl.Append(
			string(p.Name),
			p.Latency.String(),
			fmt.Sprintf("$%.3f", p.SlippagePerContract),
			fmt.Sprintf("%.0f%%", p.SlippageSpreadPct*100),
			fmt.Sprintf("%.0f", p.SizePenaltyBps),
			fmt.Sprintf("%.0f", p.AdverseSelectionBps),
			fmt.Sprintf("%.0f/%.0f/%.0f%%",
				p.MidFillProb(domain.SpreadTight)*100,
				p.MidFillProb(domain.SpreadNormal)*100,
				p.MidFillProb(domain.SpreadWide)*100),
		)
	}
	tbl.Render()

	fmt.Println("  Conservative is the default; optimistic is a sensitivity bound only.")
}
