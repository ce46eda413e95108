package main

import "github.com/davarch/ci-board/cmd/ci-board/cli"

func main() {
	cli.Execute()
}
