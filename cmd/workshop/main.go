package main

import "github.com/AaronLay10/RepairWorkshop/internal/cli"

func main() {
	cli.Execute()
}
