package main

import "github.com/sanonone/pubnet/cmd/pubnet/commands"

func main() {
	commands.Execute()
}
