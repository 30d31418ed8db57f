package main

import (
	"github.com/alfikri/estore-bff/cmd"
)

func main() {
	cmd.Start()
}
