package main

import "github.com/diffsec/gigavector/cmd"

func main() {
	cmd.Execute()
}
