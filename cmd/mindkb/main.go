package main

import "mindkb/internal/cli"

func main() {
	cli.Execute()
}
