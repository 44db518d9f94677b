// Package main is the phrasewatch executable.
package main

import "github.com/JakeFAU/phrasewatch/cmd"

func main() {
	cmd.Execute()
}
