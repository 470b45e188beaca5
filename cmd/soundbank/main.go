package main

import "github.com/aweris/soundbank/cmd/soundbank/cmd"

func main() {
	cmd.Execute()
}
