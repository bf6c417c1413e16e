package main

import "github.com/agentic-research/stratum/cmd"

func main() {
	cmd.Execute()
}
