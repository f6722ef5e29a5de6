package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deciduous/pkg/document"
)

const defaultDocument = "threats.yaml"

// initCommand creates the init command, which writes an example document.
func (c *CLI) initCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write an example attack-tree document",
		Long: `Write an example attack-tree document to start from.

The example covers every construct of the format: the four node sections,
tagged edges, backwards edges, planned mitigations and a filter.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultDocument
			if len(args) == 1 {
				path = args[0]
			}
			if path == stdio {
				_, err := fmt.Fprint(os.Stdout, document.Sample)
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := writeOutput(path, []byte(document.Sample)); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			printSuccess("Created example document")
			printFile(path)
			printNewline()
			printNextStep("Render it", "deciduous render "+path)
			printNextStep("Edit with live preview", "deciduous watch "+path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}
