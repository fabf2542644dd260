package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/perfkit/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a suite file without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if configFile == "" {
			return errors.New("config file is required")
		}
		return validateSuite(configFile, cmd.OutOrStdout())
	},
}

// validateSuite loads the suite and prints one line per test with its
// resolved configuration. Schema and semantic errors are listed in full.
func validateSuite(path string, w io.Writer) error {
	suite, err := config.LoadFile(path)
	if err != nil {
		var verrs *config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Fprintln(w, "Configuration validation errors:")
			for _, e := range verrs.Errors {
				fmt.Fprintf(w, "  - %s\n", e.Error())
			}
		}
		return err
	}

	for _, name := range suite.TestNames() {
		_, cfg, req, err := suite.Resolve(name)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("✓ %s  (%s)", testID(suite, name), cfg)
		if !req.IsEmpty() {
			line += "  requirement set"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func init() {
	validateCmd.Flags().StringP("config", "c", "", "Suite file (YAML or JSON)")
}
