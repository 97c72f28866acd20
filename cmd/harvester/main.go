package main

import "github.com/playcatalog/harvester/cmd"

func main() {
	cmd.Execute()
}
