package main

import (
	"github.com/vietddude/doctrans/internal/cli"
)

func main() {
	cli.Execute()
}
