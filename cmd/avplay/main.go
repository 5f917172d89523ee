package main

import "github.com/thesyncim/avplay/internal/cli"

func main() {
	cli.Execute()
}
