package main

import (
	"os"

	"cfddns/cmd/cfddns/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
