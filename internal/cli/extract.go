package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deciduous/pkg/provenance"
)

// extractCommand creates the extract command, which recovers the document
// embedded in a rendered artifact.
func (c *CLI) extractCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "extract [artifact]",
		Short: "Recover the document embedded in an SVG, PNG or DOT file",
		Long: `Recover the document a diagram was rendered from.

The artifact format is detected from its content, not its extension. The
recovered document is byte-identical to the one that was rendered.

Examples:
  deciduous extract threats.svg > threats.yaml
  deciduous extract shared.png -o recovered.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			artifact, err := readInput(input)
			if err != nil {
				return fmt.Errorf("read %s: %w", input, err)
			}
			source, format, err := provenance.Extract(artifact)
			if err != nil {
				return err
			}
			loggerFromContext(cmd.Context()).Debug("extracted source", "format", format, "bytes", len(source))

			if err := writeOutput(output, []byte(source)); err != nil {
				return fmt.Errorf("write output %s: %w", output, err)
			}
			if output != "" && output != stdio {
				printSuccess("Extracted document from %s %s", format, input)
				printFile(output)
				printNextStep("Render it again", "deciduous render "+output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}
