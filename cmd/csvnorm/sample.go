package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ruslano69/csvnorm/pkg/etl"
)

func newSampleCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write the sample users.csv input",
		Long: `Write a four-row users.csv with mixed-case names, emails in different
cases, phones in several formats and dates in both month-first and year-first form.`,
		Args:    cobra.NoArgs,
		PreRunE: bindFlags(v),
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := etl.WriteSampleData(v.GetString("dir"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created sample data: %s\n", path)
			return nil
		},
	}

	cmd.Flags().String("dir", "data", "directory for the sample file")

	return cmd
}
