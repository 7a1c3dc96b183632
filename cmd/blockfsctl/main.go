// Command blockfsctl inspects and manages blockfs disk images.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/nblk/blockfs"
)

func main() {
	app := &cli.App{
		Name:  "blockfsctl",
		Usage: "inspect and manage blockfs disk images",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Value: ".disk", Usage: "path to the disk image"},
		},
		Commands: []*cli.Command{
			{
				Name:      "mkfs",
				Usage:     "create a fresh disk image",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "size", Value: blockfs.DefaultImageSize, Usage: "image size in bytes"},
				},
				Action: func(c *cli.Context) error {
					img, err := blockfs.Format(c.String("image"), c.Int64("size"))
					if err != nil {
						return err
					}
					defer img.Close()
					fmt.Printf("formatted %s (%d bytes)\n", c.String("image"), c.Int64("size"))
					return nil
				},
			},
			{
				Name:      "ls",
				Usage:     "list files in the image",
				ArgsUsage: "[path]",
				Action: func(c *cli.Context) error {
					path := "/"
					if c.Args().Len() > 0 {
						path = c.Args().First()
					}
					img, err := blockfs.Open(c.String("image"))
					if err != nil {
						return err
					}
					defer img.Close()
					return listPath(img, path)
				},
			},
			{
				Name:      "cat",
				Usage:     "print a file's contents",
				ArgsUsage: "path",
				Action: func(c *cli.Context) error {
					if c.Args().Len() < 1 {
						return cli.Exit("missing path", 1)
					}
					img, err := blockfs.Open(c.String("image"))
					if err != nil {
						return err
					}
					defer img.Close()
					return catPath(img, c.Args().First())
				},
			},
			{
				Name:  "info",
				Usage: "print image layout information",
				Action: func(c *cli.Context) error {
					img, err := blockfs.Open(c.String("image"))
					if err != nil {
						return err
					}
					defer img.Close()
					return showInfo(img)
				},
			},
			{
				Name:  "fsck",
				Usage: "check image consistency",
				Action: func(c *cli.Context) error {
					img, err := blockfs.Open(c.String("image"))
					if err != nil {
						return err
					}
					defer img.Close()
					if err := img.Verify(); err != nil {
						fmt.Fprintln(os.Stderr, err)
						return cli.Exit("inconsistent image", 1)
					}
					fmt.Println("image is consistent")
					return nil
				},
			},
			mountCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func listPath(img *blockfs.Image, path string) error {
	entries, err := img.Readdir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		typeChar := "-"
		if e.IsDir {
			typeChar = "d"
		}

		var childPath string
		if path == "/" {
			childPath = "/" + e.Name
		} else {
			childPath = path + "/" + e.Name
		}

		var size uint64
		var perm os.FileMode
		if e.Name != "." && e.Name != ".." {
			if a, err := img.Getattr(childPath); err == nil {
				size = a.Size
				perm = a.Mode.Perm()
			}
		}
		fmt.Printf("%s%-9s %8d %s\n", typeChar, perm, size, e.Name)
	}
	return nil
}

func catPath(img *blockfs.Image, path string) error {
	a, err := img.Getattr(path)
	if err != nil {
		return err
	}
	buf := make([]byte, a.Size)
	n, err := img.Read(path, buf, len(buf), 0)
	if err != nil && err != io.EOF {
		return err
	}
	_, err = os.Stdout.Write(buf[:n])
	return err
}

func showInfo(img *blockfs.Image) error {
	n, k, used := img.Stats()

	fmt.Println("blockfs image information")
	fmt.Println("=========================")
	fmt.Printf("Block size:       %d bytes\n", blockfs.BlockSize)
	fmt.Printf("Total blocks (N): %d\n", n)
	fmt.Printf("Bitmap blocks (K):%d\n", k)
	fmt.Printf("Max directories:  %d\n", blockfs.MaxDirectories)
	fmt.Printf("Max files/dir:    %d\n", blockfs.MaxFiles)
	fmt.Printf("Used blocks:      %d\n", used)

	entries, err := img.Readdir("/")
	if err != nil {
		return err
	}
	dirCount := 0
	fileCount := 0
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		dirCount++
		files, err := img.Readdir("/" + e.Name)
		if err != nil {
			return err
		}
		for _, f := range files {
			if !f.IsDir {
				fileCount++
			}
		}
	}
	fmt.Printf("Directories:      %d\n", dirCount)
	fmt.Printf("Files:            %d\n", fileCount)
	return nil
}
