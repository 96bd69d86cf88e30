// Package main provides the keeper CLI.
package main

import "github.com/mesh-intelligence/recordkeeper/internal/cli"

func main() {
	cli.Execute()
}
