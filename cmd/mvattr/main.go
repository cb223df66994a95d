package main

import "github.com/ValentinKolb/mvattr/cmd"

func main() {
	cmd.Execute()
}
