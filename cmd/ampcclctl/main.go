// Command ampcclctl is an out-of-process inspection tool for the shared-
// memory state libampccl's hook layer maintains: it can list and dump the
// `/ampccl_<hex>` segments living under a shm directory, and run the janitor
// sweep (the library itself never runs it on a timer). Grounded on
// the teacher repo's cmd/cli layout, adapted to this module's single small
// surface with gopkg.in/urfave/cli.v1, the CLI framework carried forward from
// the example pack's ProbeChain-go-probe/cmd/devp2p tooling.
package main

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/adaptive-ccl/ampccl/shm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var dirFlag = cli.StringFlag{
	Name:  "dir",
	Usage: "directory backing shm segments",
	Value: "/dev/shm",
}

func main() {
	app := cli.NewApp()
	app.Name = "ampcclctl"
	app.Usage = "inspect and maintain libampccl's shared-memory state"
	app.Flags = []cli.Flag{dirFlag}
	app.Commands = []cli.Command{
		listCommand,
		inspectCommand,
		sweepCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ampcclctl:", err)
		os.Exit(1)
	}
}

var listCommand = cli.Command{
	Name:  "list",
	Usage: "list ampccl_* segment names under --dir",
	Action: func(c *cli.Context) error {
		names, err := listSegments(c.GlobalString("dir"))
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var inspectCommand = cli.Command{
	Name:      "inspect",
	Usage:     "dump one segment's header, per-rank stats, and parameter table as JSON",
	ArgsUsage: "<segment-name>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("inspect requires exactly one segment name argument", 1)
		}
		snap, err := shm.Inspect(c.GlobalString("dir"), c.Args().First())
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

var sweepCommand = cli.Command{
	Name:  "sweep",
	Usage: "remove orphaned segments whose lock-owner process is dead",
	Action: func(c *cli.Context) error {
		res, err := shm.Sweep(c.GlobalString("dir"))
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

// listSegments is a minimal directory scan kept local to the command rather
// than added to the shm package: it only needs filenames, not the full
// godirwalk.Walk machinery Sweep already uses for its remove decision.
func listSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "ampccl_") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
