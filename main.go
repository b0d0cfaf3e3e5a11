package main

import "github.com/imoblink/imoblink/cmd"

func main() {
	cmd.Execute()
}
