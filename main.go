package main

import "github.com/nextlevelbuilder/codi/cmd"

func main() {
	cmd.Execute()
}
