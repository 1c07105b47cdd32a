package main

import "github.com/agentic-research/texmap/cmd"

func main() {
	cmd.Execute()
}
