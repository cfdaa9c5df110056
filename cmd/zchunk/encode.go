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

	"github.com/urfave/cli/v2"

	"github.com/yybit/zchunk-go"
)

type encode struct {
	path  string
	out   string
	force bool
}

func newEncodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "encode a file into a zchunk container",
		ArgsUsage: "SRC",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output path (default SRC.zck)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "force overwrite of output file", DisableDefaultText: true},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: expected exactly one SRC argument", ErrFlagParse)
			}
			e := encode{
				path:  c.Args().First(),
				out:   c.String("output"),
				force: c.Bool("force"),
			}
			return e.Run()
		},
	}
}

func (e *encode) Run() error {
	out := e.out
	if out == "" {
		out = e.path + ".zck"
	}

	src, err := os.Open(e.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrZchunkCLI, err)
	}
	defer src.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if !e.force {
		flags |= os.O_EXCL
	}
	dst, err := os.OpenFile(out, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening target file: %w", ErrZchunkCLI, err)
	}
	defer dst.Close()

	temp, err := os.CreateTemp("", "zchunk-encode-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp spool: %w", ErrZchunkCLI, err)
	}
	defer func() {
		temp.Close()
		os.Remove(temp.Name())
	}()

	if err := zchunk.Encode(dst, src, temp); err != nil {
		return fmt.Errorf("%w: encoding %q: %w", ErrZchunkCLI, e.path, err)
	}

	return nil
}
