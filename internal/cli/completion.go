package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deciduous/pkg/document"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for deciduous.

Besides commands and flags, --focus completes the node ids declared in the
document given on the command line.

To load completions:

Bash:
  $ source <(deciduous completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ deciduous completion bash > /etc/bash_completion.d/deciduous
  # macOS:
  $ deciduous completion bash > $(brew --prefix)/etc/bash_completion.d/deciduous

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ deciduous completion zsh > "${fpath[1]}/_deciduous"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ deciduous completion fish | source

  # To load completions for each session, execute once:
  $ deciduous completion fish > ~/.config/fish/completions/deciduous.fish

PowerShell:
  PS> deciduous completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> deciduous completion powershell > deciduous.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}

// completeNodeIDs completes --focus with the ids declared in the document
// named by the first argument. An unreadable or invalid document offers no
// completions rather than an error.
func completeNodeIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 || args[0] == stdio {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	doc, err := document.Parse(src)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var ids []string
	for _, c := range document.Categories {
		for _, n := range doc.Section(c) {
			if strings.HasPrefix(n.ID, toComplete) {
				ids = append(ids, n.ID+"\t"+n.Label)
			}
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
