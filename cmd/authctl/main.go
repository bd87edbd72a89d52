package main

import "github.com/ovaphlow/pitchfork/service-auth-go/cmd/authctl/cmd"

func main() {
	cmd.Execute()
}
