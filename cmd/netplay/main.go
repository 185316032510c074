package main

import (
	"github.com/skirmish-engine/netplay/cmd/netplay/cmd"
)

func main() {
	cmd.Execute()
}
