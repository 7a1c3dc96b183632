//go:build !fuse

package main

import (
	"github.com/urfave/cli/v2"
)

// mount is only available when built with the fuse tag, since it pulls in
// cgo-free but still platform-specific kernel FUSE plumbing that the rest of
// this tool does not need.
var mountCommand = &cli.Command{
	Name:      "mount",
	Usage:     "mount the image (requires building with -tags fuse)",
	ArgsUsage: "mountpoint",
	Action: func(c *cli.Context) error {
		return cli.Exit("blockfsctl was built without the fuse tag; rebuild with -tags fuse", 1)
	},
}
