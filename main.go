//go:build !tray

package main

import "github.com/bartek5186/woo2mag/internal/cli"

func main() {
	cli.Execute()
}
