// The main package for the paper-archiver executable.
package main

import "paper-archiver/cmd"

func main() {
	cmd.Execute()
}
