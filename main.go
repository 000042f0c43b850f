package main

import "github.com/Monsterkot/diplom/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
