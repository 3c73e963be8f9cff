package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// OptionalSourcePath accepts zero or one <source_dir> argument. Without it
// the source directory comes from --source or pgload.yaml.
func OptionalSourcePath(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf(`accepts at most 1 arg(s), received %d

Usage: %s

Example:
  %s ./inbox --schema schema.yaml -d warehouse`, len(args), cmd.UseLine(), cmd.CommandPath())
	}
	return nil
}
