package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for ucoind
var RootCmd = &cobra.Command{
	Use:              "ucoind",
	Short:            "ucoin amendment chain node",
	TraverseChildren: true,
}
