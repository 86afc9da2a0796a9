package main

import "github.com/nextlevelbuilder/hitlchat/cmd"

func main() {
	cmd.Execute()
}
