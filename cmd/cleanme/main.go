package main

import (
	"makeprojects/pkg/cli"
)

func main() {
	cli.Execute(cli.CleanCmd)
}
