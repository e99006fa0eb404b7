package main

import "github.com/sgonzalezm/AlarmMgmt/cmd/alarm-controller/cmd"

func main() {
	cmd.Execute()
}
