/*
Copyright © 2025 Dean
*/
package main

import "paperchat/cmd"

func main() {
	cmd.Execute()
}
