// Command fnfctl runs the settlement rule engine from the shell.
//
//	fnfctl amount --component "Worked Day" --days 45 --rate 100
//	fnfctl apply payload.json --rules rules.json --line-fields rate_per_day
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/warp/settlement-engine/baseline"
	"github.com/warp/settlement-engine/factory"
	"github.com/warp/settlement-engine/settlement"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rulesPath string

	root := &cobra.Command{
		Use:           "fnfctl",
		Short:         "Full & Final settlement tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rulesPath, "rules", "", "JSON rule-set file")

	loadRules := func() (*settlement.Rules, error) {
		if rulesPath == "" {
			return settlement.NewRules(), nil
		}
		return factory.NewRuleFactory().LoadRuleSet(rulesPath)
	}

	root.AddCommand(newAmountCmd(loadRules), newApplyCmd(loadRules))
	return root
}

func newAmountCmd(loadRules func() (*settlement.Rules, error)) *cobra.Command {
	var component, days, rate string

	cmd := &cobra.Command{
		Use:   "amount",
		Short: "Compute one line amount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := loadRules()
			if err != nil {
				return err
			}
			amount := rules.Compute(component, settlement.Normalize(days), settlement.Normalize(rate))
			fmt.Fprintln(cmd.OutOrStdout(), amount.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&component, "component", settlement.WorkedDayComponent, "Line component")
	cmd.Flags().StringVar(&days, "days", "0", "Day count")
	cmd.Flags().StringVar(&rate, "rate", "0", "Rate per day")
	return cmd
}

func newApplyCmd(loadRules func() (*settlement.Rules, error)) *cobra.Command {
	var (
		employee   string
		lineFields []string
	)

	cmd := &cobra.Command{
		Use:   "apply <payload.json>",
		Short: "Materialize a baseline payload and print the table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			payload, err := baseline.DecodePayload(raw)
			if err != nil {
				return err
			}
			rules, err := loadRules()
			if err != nil {
				return err
			}
			schema, err := settlement.ParseSchema(lineFields)
			if err != nil {
				return err
			}

			a := &settlement.Applicator{Rules: rules, Schema: schema}
			b, err := a.Materialize(employee, payload)
			if err != nil {
				return errors.New(settlement.NoticeMessage(err))
			}
			return printBaseline(cmd.OutOrStdout(), b)
		},
	}
	cmd.Flags().StringVar(&employee, "employee", "", "Employee the payload belongs to")
	cmd.Flags().StringSliceVar(&lineFields, "line-fields",
		[]string{string(settlement.FieldRatePerDay), string(settlement.FieldWorkedDays), string(settlement.FieldAutoAmount)},
		"Optional line fields declared by the table")
	return cmd
}

func printBaseline(out io.Writer, b *settlement.Baseline) error {
	if b.Note != "" {
		fmt.Fprintf(out, "Note: %s\n\n", b.Note)
	}
	s := b.Service
	fmt.Fprintf(out, "Service: %sy %sm %sd (%s years)\n\n", s.Years, s.Months, s.Days, s.TotalOfYears)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tDAYS\tRATE\tAMOUNT\tBASIS\t")
	for _, l := range b.Lines {
		rate := "-"
		if l.RatePerDay != nil {
			rate = l.RatePerDay.StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", l.Component, l.DayCount, rate, l.Amount.StringFixed(2), l.Basis)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	total := settlement.RecomputeTotal(b.Lines)
	fmt.Fprintf(out, "\nTotal payable: %s\n", total.StringFixed(2))
	if b.ReportedTotal != nil && !b.ReportedTotal.Equal(total) {
		fmt.Fprintf(out, "Baseline total %s differs from line total.\n", b.ReportedTotal.StringFixed(2))
	}
	return nil
}
