package main

import "github.com/privscope/privscope/cmd"

func main() {
	cmd.Execute()
}
