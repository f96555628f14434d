package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix is the prefix of every environment variable the CLI reads,
// e.g. CSVNORM_INPUT or CSVNORM_OUTPUT_SEPARATOR.
const envPrefix = "CSVNORM"

// newRootCmd builds the command tree. Each call gets its own viper
// instance so tests can run commands side by side.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "csvnorm",
		Short: "Streaming normalizer for delimited text files",
		Long: `csvnorm reads delimited text, normalizes well-known fields and writes the result.

Default rules:
  name, first_name, last_name, city   capitalize each word ("mary-jane smith" → "Mary-Jane Smith")
  email                               lowercase and trim
  phone, mobile                       (XXX) XXX-XXXX or INVALID
  date, birthdate, birth_date, dob    YYYY-MM-DD

Quick Start:
  csvnorm sample                                   Write data/users.csv
  csvnorm run -i data/users.csv -o out.csv         Normalize a file
  csvnorm preview -i data/users.csv                Show normalized rows as a table
  csvnorm run --config pipeline.yaml               Run a configured pipeline

Every flag can also be set through the environment: CSVNORM_<FLAG>,
with dashes replaced by underscores (CSVNORM_OUTPUT_SEPARATOR=", ").`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "pipeline configuration file (YAML)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.AddCommand(
		newRunCmd(v),
		newSampleCmd(v),
		newPreviewCmd(v),
		newVersionCmd(),
	)

	return root
}

// bindFlags binds the flags of the command being run. Binding happens
// at run time because run and preview share flag names.
func bindFlags(v *viper.Viper) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return v.BindPFlags(cmd.Flags())
	}
}
