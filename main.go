package main

import "github.com/LovationAdmin/expense-api/cmd"

func main() {
	cmd.Execute()
}
