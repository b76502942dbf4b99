package main

import "github.com/dess-cd/dess/cmd/root"

func main() {
	root.Execute()
}
