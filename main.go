package main

import "github.com/crateimport/crateimport/cmd"

func main() {
	cmd.Execute()
}
