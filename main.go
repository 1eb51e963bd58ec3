package main

import "github.com/kozaktomas/absen-kiosk/cmd"

func main() {
	cmd.Execute()
}
