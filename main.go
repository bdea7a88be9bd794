package main

import "drivemigrate/cmd"

func main() {
	cmd.Execute()
}
