package main

import "github.com/WPP-Public/akqa-nz-beam-sub001/internal/cli"

func main() {
	cli.Execute()
}
