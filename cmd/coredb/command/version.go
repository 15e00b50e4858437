package command

import "fmt"

// Version is the coredb CLI's reported version. There is no release
// process yet driving this from a tag, so it is a plain constant.
const Version = "0.1.0"

type VersionCommand struct{}

func (c *VersionCommand) Help() string     { return "Prints the coredb version" }
func (c *VersionCommand) Synopsis() string { return "Prints the coredb version" }

func (c *VersionCommand) Run(args []string) int {
	fmt.Println("coredb " + Version)
	return 0
}
