package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultDeposit/internal/numeric"
)

func runConvert(cmd *cobra.Command, _ []string) error {
	amount, _ := cmd.Flags().GetString("amount")
	decimals, _ := cmd.Flags().GetUint8("decimals")

	normalized, err := numeric.NormalizeDecimalString(amount)
	if err != nil {
		return err
	}
	base, err := numeric.ToBaseUnits(amount, decimals)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "normalized: %s\n", normalized)
	fmt.Fprintf(out, "base units: %s\n", base.String())
	fmt.Fprintf(out, "round trip: %s\n", numeric.FormatUnits(base, decimals))
	return nil
}
