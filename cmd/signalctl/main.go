// Command signalctl is the admin CLI for the signalcore daemon's
// read-only HTTP admin surface (§4.O).
package main

import "github.com/dropvault/signalcore/cmd/signalctl/commands"

func main() {
	commands.Execute()
}
