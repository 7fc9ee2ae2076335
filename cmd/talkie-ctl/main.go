package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"talkie/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Daemon control socket")
	cli.Parse()

	args := cli.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: talkie-ctl [--socket PATH] <start|stop|interrupt|mode|reset|quit> [arg]")
		os.Exit(2)
	}

	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	if err := ipc.SendCommand(*socket, args[0], arg); err != nil {
		fmt.Println("talkie-daemon not running:", err)
		os.Exit(1)
	}
}
