// Command clowdyctl is the operator CLI for a running clowdy control
// plane: invoke functions, inspect the warm pool, and rebuild project
// images.
package main

import "github.com/clowdy-dev/clowdy/internal/cli"

func main() {
	cli.Execute()
}
