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
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yybit/zchunk-go"
)

type syncCmd struct {
	cachePath  string
	sourcePath string
	out        string
	force      bool
}

func newSyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "assemble a zchunk file by reusing chunks from a cached copy",
		ArgsUsage: "SOURCE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cache", Usage: "path to a previously fetched zchunk file", Required: true},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output path (default SOURCE)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "force overwrite of output file", DisableDefaultText: true},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: expected exactly one SOURCE argument", ErrFlagParse)
			}
			s := syncCmd{
				cachePath:  c.String("cache"),
				sourcePath: c.Args().First(),
				out:        c.String("output"),
				force:      c.Bool("force"),
			}
			return s.Run()
		},
	}
}

func (s *syncCmd) Run() error {
	out := s.out
	if out == "" {
		out = s.sourcePath
	}

	sourceFile, err := os.Open(s.sourcePath)
	if err != nil {
		return fmt.Errorf("%w: opening source: %w", ErrZchunkCLI, err)
	}
	defer sourceFile.Close()

	cacheFile, err := os.Open(s.cachePath)
	if err != nil {
		return fmt.Errorf("%w: opening cache: %w", ErrZchunkCLI, err)
	}
	defer cacheFile.Close()

	source, err := zchunk.NewDecoder(sourceFile)
	if err != nil {
		return fmt.Errorf("%w: reading source header: %w", ErrZchunkCLI, err)
	}
	cache, err := zchunk.NewDecoder(cacheFile)
	if err != nil {
		return fmt.Errorf("%w: reading cache header: %w", ErrZchunkCLI, err)
	}

	tmp, err := os.CreateTemp("", "zchunk-sync-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp output: %w", ErrZchunkCLI, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := zchunk.Sync(tmp, source, cache); err != nil {
		return fmt.Errorf("%w: syncing %q: %w", ErrZchunkCLI, s.sourcePath, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !s.force {
		if _, statErr := os.Stat(out); statErr == nil {
			return fmt.Errorf("%w: %q already exists", ErrZchunkCLI, out)
		}
	}
	dst, err := os.OpenFile(out, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening output: %w", ErrZchunkCLI, err)
	}
	defer dst.Close()

	if _, err := tmp.Seek(0, 0); err != nil {
		return fmt.Errorf("%w: rewinding temp output: %w", ErrZchunkCLI, err)
	}
	if _, err := io.Copy(dst, tmp); err != nil {
		return fmt.Errorf("%w: writing output: %w", ErrZchunkCLI, err)
	}

	return nil
}
