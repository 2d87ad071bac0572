package main

import "github.com/entreaty/entreaty/internal/cli"

func main() {
	cli.Execute()
}
