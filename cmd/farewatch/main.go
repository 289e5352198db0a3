// Command farewatch is the command line client for the farewatch API.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := newCLI(out, errOut)
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	if err := root.ExecuteContext(ctx); err != nil {
		if !reported(err) {
			c.printer.Error("%s", describe(err))
		}
		return 1
	}
	return 0
}
