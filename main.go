package main

import "github.com/nsyszr/pushbridge/cmd"

func main() {
	cmd.Execute()
}
