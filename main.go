package main

import "github.com/tellergate/tellergate/cmd"

func main() {
	cmd.Execute()
}
