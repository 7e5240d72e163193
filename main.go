package main

import "github.com/lectorium/workshop/cmd"

func main() {
	cmd.Execute()
}
