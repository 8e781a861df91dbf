package main

import "github.com/denysvitali/fm-connector/cmd"

func main() {
	cmd.Execute()
}
