//go:build fuse

package main

import (
	"github.com/urfave/cli/v2"

	"github.com/nblk/blockfs"
	"github.com/nblk/blockfs/fuseadapter"
)

var mountCommand = &cli.Command{
	Name:      "mount",
	Usage:     "mount the image at a directory and serve FUSE requests",
	ArgsUsage: "mountpoint",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 1 {
			return cli.Exit("missing mountpoint", 1)
		}
		img, err := blockfs.Open(c.String("image"))
		if err != nil {
			return err
		}
		defer img.Close()
		return fuseadapter.Mount(img, c.Args().First())
	},
}
