package main

import (
	"fmt"
	"runtime/debug"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"
)

type Context struct {
	Debug   bool
	Logger  *logrus.Logger
	Globals *Globals
}

var cli struct {
	Globals

	Sign    SignCmd    `cmd:"" help:"Sign a request and print the signed headers or URL."`
	Presign PresignCmd `cmd:"" help:"Print a presigned URL."`
	Fetch   FetchCmd   `cmd:"" help:"Sign a request, send it, and print the response body."`
	Ls      LsCmd      `cmd:"" help:"List bucket objects."`
	Summary SummaryCmd `cmd:"" help:"Show total object size and count."`
	Version VersionCmd `cmd:"" help:"Show version and exit."`
}

func main() {
	ctx := kong.Parse(&cli)
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})
	if cli.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	err := ctx.Run(&Context{
		Debug:   cli.Debug,
		Logger:  logger,
		Globals: &cli.Globals,
	})
	ctx.FatalIfErrorf(err)
}

type VersionCmd struct{}

func (v *VersionCmd) Run(ctx *Context) error {
	fmt.Println(version())
	return nil
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}
	return info.Main.Version
}
