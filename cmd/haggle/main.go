package main

import "github.com/haggle-network/haggle/internal/cli"

func main() {
	cli.Execute()
}
