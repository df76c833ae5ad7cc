// cmd/tools/match-cli/main.go
package main

import "creator-match/internal/cli"

func main() {
	cli.Execute()
}
