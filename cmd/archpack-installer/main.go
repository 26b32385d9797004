package main

import "github.com/oshokin/archpack/cmd/archpack-installer/cmd"

func main() {
	cmd.Execute()
}
