package main

import "github.com/mcoot/allfence/internal/cli"

func main() {
	cli.Execute()
}
