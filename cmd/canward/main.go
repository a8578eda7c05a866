// Command canward is the safety gate for CAN bus frame injection.
package main

import "github.com/ppiankov/canward/internal/cli"

func main() {
	cli.Execute()
}
