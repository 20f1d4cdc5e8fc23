package main

import "github.com/SoarinFerret/BlockWarden/cmd/bwctl/arg"

func main() {
	arg.Execute()
}
