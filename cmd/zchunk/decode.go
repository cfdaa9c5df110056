// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yybit/zchunk-go"
)

type decode struct {
	path  string
	out   string
	force bool
}

func newDecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "decode a zchunk container back to its original bytes",
		ArgsUsage: "IN",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output path (default IN with .zck stripped, or IN.out if IN has no .zck suffix)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "force overwrite of output file", DisableDefaultText: true},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: expected exactly one IN argument", ErrFlagParse)
			}
			d := decode{
				path:  c.Args().First(),
				out:   c.String("output"),
				force: c.Bool("force"),
			}
			return d.Run()
		},
	}
}

func (d *decode) Run() error {
	out := d.out
	if out == "" {
		out = strings.TrimSuffix(d.path, ".zck")
		if out == d.path {
			out = d.path + ".out"
		}
	}

	src, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrZchunkCLI, err)
	}
	defer src.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if !d.force {
		flags |= os.O_EXCL
	}
	dst, err := os.OpenFile(out, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening target file: %w", ErrZchunkCLI, err)
	}
	defer dst.Close()

	if err := zchunk.Decode(dst, src); err != nil {
		return fmt.Errorf("%w: decoding %q: %w", ErrZchunkCLI, d.path, err)
	}

	return nil
}
