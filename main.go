package main

import (
	"github.com/scan-io-git/filescan/cmd"
)

func main() {
	cmd.Execute()
}
