package version

import (
	"github.com/bokysan/streamio/internal/codec"
	"github.com/bokysan/streamio/internal/version"
	"github.com/k0kubun/go-ansi"
)

const (
	Bold           = "\x1b[1m"
	Reset          = "\x1b[0m"
	LightGray      = "\x1b[37m"
	DarkGray       = "\x1b[90m"
	White          = "\x1b[97m"
	BackgroundBlue = "\x1b[44m"
)

// Command prints the build information
type Command struct {
	Encodings bool `long:"encodings" description:"Also list the supported text encodings"`
}

func (c *Command) String() string {
	return "Version details"
}

//goland:noinspection GoUnhandledErrorResult
func (c *Command) Execute(args []string) error {
	PrintVersion()
	if version.GitTag != "" {
		ansi.Printf(DarkGray+" Git tag     "+White+"%+v"+Reset+"\n", version.GitTag)
	}
	if version.GitBranch != "" {
		ansi.Printf(DarkGray+" Git branch  "+White+"%+v"+Reset+"\n", version.GitBranch)
	}
	if version.GitState != "" {
		ansi.Printf(DarkGray+" Git state   "+White+"%+v"+Reset+"\n", version.GitState)
	}
	ansi.Printf(DarkGray+" Go version  "+White+"%+v"+Reset+"\n", version.RuntimeVersion())

	if c.Encodings {
		ansi.Printf(DarkGray + " Encodings" + Reset + "\n")
		for _, name := range codec.Names() {
			ansi.Printf("   "+White+"%s"+Reset+"\n", name)
		}
	}
	return nil
}

//goland:noinspection GoUnhandledErrorResult
func PrintVersion() {
	ansi.Printf(Bold+BackgroundBlue+
		LightGray+" STREAMIO - buffered text streams "+White+"%s"+LightGray+" "+Reset+"\n"+
		DarkGray+" Built on    "+White+"%+v\n"+
		DarkGray+" Git version "+White+"%+v"+Reset+"\n",
		version.AppVersion(), version.BuildDate, version.GitCommit)
}
