package main

import (
	"os"

	"github.com/AcaciaLinux/libpkgbuild/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
