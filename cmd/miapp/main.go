package main

import "github.com/shercan/miapp/cmd/miapp/cmd"

func main() {
	cmd.Execute()
}
