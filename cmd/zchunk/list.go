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

	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	"github.com/yybit/zchunk-go"
)

type list struct {
	path string
}

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "print a summary of a zchunk file's chunk index",
		ArgsUsage: "IN",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: expected exactly one IN argument", ErrFlagParse)
			}
			l := list{path: c.Args().First()}
			return l.Run()
		},
	}
}

func (l *list) Run() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrZchunkCLI, err)
	}
	defer f.Close()

	d, err := zchunk.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("%w: reading header: %w", ErrZchunkCLI, err)
	}

	checksumType, err := d.ChecksumType()
	if err != nil {
		return fmt.Errorf("%w: reading checksum type: %w", ErrZchunkCLI, err)
	}

	var compressed, uncompressed uint64
	chunks := d.Index()
	for _, c := range chunks {
		compressed += c.Length
		uncompressed += c.UncompressedLength
	}

	ratio := 0.0
	if uncompressed > 0 {
		ratio = (1 - float64(compressed)/float64(uncompressed)) * 100
	}

	tbl := table.New("type", "chunks", "checksum", "compressed", "uncompressed", "ratio", "name")
	tbl.AddRow(
		"zck",
		len(chunks),
		checksumTypeName(checksumType),
		fmt.Sprintf("%d", compressed),
		fmt.Sprintf("%d", uncompressed),
		fmt.Sprintf("%.1f%%", ratio),
		l.path,
	)
	tbl.Print()

	return nil
}

func checksumTypeName(t uint64) string {
	switch t {
	case zchunk.ChecksumSHA1:
		return "sha-1"
	case zchunk.ChecksumSHA256:
		return "sha-256"
	case zchunk.ChecksumSHA512:
		return "sha-512"
	case zchunk.ChecksumSHA512_128:
		return "sha-512/128"
	default:
		return "unknown"
	}
}
