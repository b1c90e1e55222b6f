package main

import "github.com/flicky/storefront-api/internal/cli"

func main() {
	cli.Execute()
}
