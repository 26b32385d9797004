package main

import "github.com/oshokin/archpack/cmd/archpack-builder/cmd"

func main() {
	cmd.Execute()
}
