package main

import "github.com/aweris/hashstore/cmd/hashstore/cmd"

func main() {
	cmd.Execute()
}
