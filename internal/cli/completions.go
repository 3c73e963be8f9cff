package cli

import (
	"github.com/spf13/cobra"
)

// sslModes contains valid PostgreSQL SSL modes for shell completion.
var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

var loadModes = []string{"bulk", "merge"}

var authMethods = []string{"standard", "aws", "google", "azure"}

func fixedCompletion(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// registerLoadCompletions wires flag value completion for the load command.
func registerLoadCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("sslmode", fixedCompletion(sslModes))
	_ = cmd.RegisterFlagCompletionFunc("mode", fixedCompletion(loadModes))
	_ = cmd.RegisterFlagCompletionFunc("auth", fixedCompletion(authMethods))
	_ = cmd.RegisterFlagCompletionFunc("schema", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})
	_ = cmd.RegisterFlagCompletionFunc("config", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})
	_ = cmd.RegisterFlagCompletionFunc("source", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	})
}
