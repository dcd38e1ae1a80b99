package main

import "github.com/fyshare/fyshare/cmd/fyshare/cmd"

func main() {
	cmd.Execute()
}
