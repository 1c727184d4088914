package main

import "github.com/chronicle-dev/chronicle/cmd"

func main() {
	cmd.Execute()
}
