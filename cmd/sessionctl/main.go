package main

import "github.com/emberhollow/sessiond/internal/cli"

func main() {
	cli.Execute()
}
