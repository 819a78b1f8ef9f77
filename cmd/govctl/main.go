package main

import "github.com/lfguard/govctl/cmd/govctl/cmd"

func main() {
	cmd.Execute()
}
