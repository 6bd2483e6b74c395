package main

import "github.com/seantzu/janggu/cmd"

func main() {
	cmd.Execute()
}
