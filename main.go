package main

import (
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.Exit(err)
	}
}
