package main

import (
	"github.com/NVIDIA/crashcore/pkg/cli"
)

func main() {
	cli.Execute()
}
