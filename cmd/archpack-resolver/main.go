package main

import "github.com/oshokin/archpack/cmd/archpack-resolver/cmd"

func main() {
	cmd.Execute()
}
