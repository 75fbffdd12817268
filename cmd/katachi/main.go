package main

import (
	"context"

	"github.com/Ting2004/katachi/internal/cli"
)

func main() {
	cli.ExitOnError(cli.Execute(context.Background()))
}
