package main

import (
	"github.com/lowc1012/cooldown/internal/cmd"
)

func main() {
	cmd.ExitOnError(cmd.Execute())
}
