// Command digcap is a thin CLI demonstration of the digcap library: create
// a capsule set from a file, extract one back, or inspect a capsule file's
// header. It is not part of the capsule format's contract (spec section 1
// places CLI wrappers out of scope) — it exists the way
// cmd/stream-commp exists alongside the commP library: a convenience for
// exercising the package by hand.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/pborman/options"

	digcap "github.com/dig-network/digcapsule"
)

func main() {
	opts := &struct {
		Create     string       `getopt:"-c --create          Create a capsule set from the given input file"`
		Extract    string       `getopt:"-x --extract         Extract the capsule set at the given directory or manifest path"`
		Info       string       `getopt:"-i --info            Print header diagnostics for a single capsule file"`
		Output     string       `getopt:"-o --output          Output directory (create) or file (extract)"`
		Passphrase string       `getopt:"-p --passphrase      Optional passphrase for encryption/decryption"`
		Help       options.Help `getopt:"-h --help            Display help"`
	}{}

	options.RegisterAndParse(opts)

	switch {
	case opts.Create != "":
		runCreate(opts.Create, opts.Output, opts.Passphrase)
	case opts.Extract != "":
		runExtract(opts.Extract, opts.Output, opts.Passphrase)
	case opts.Info != "":
		runInfo(opts.Info)
	default:
		log.Fatal("one of -c/--create, -x/--extract, or -i/--info is required")
	}
}

func runCreate(inputPath, outputDir, passphrase string) {
	if outputDir == "" {
		log.Fatal("-o/--output is required with --create")
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintf(os.Stderr, "writing capsule set for %s into %s...\n", inputPath, outputDir)
	}

	set, err := digcap.CreateDataCapsuleFromFile(inputPath, outputDir, false, passphrase)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf(
		"id:       %s\ncapsules: %d\noriginal: %s\n",
		set.ID,
		len(set.Capsules),
		humanize.Bytes(set.Metadata.OriginalSize),
	)
}

func runExtract(setPath, outputPath, passphrase string) {
	if outputPath == "" {
		log.Fatal("-o/--output is required with --extract")
	}

	if err := digcap.ExtractDataCapsuleToFile(setPath, outputPath, passphrase); err != nil {
		log.Fatal(err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%s)\n", outputPath, humanize.Bytes(uint64(info.Size())))
}

func runInfo(path string) {
	info := digcap.GetCapsuleFileInfo(path)
	if info == nil {
		log.Fatalf("%s is not a valid capsule file", path)
	}

	fmt.Printf(
		"magic:       %s\nversion:     %d\nindex:       %d\nsize:        %s\ndata_size:   %d\nencrypted:   %t\ncompressed:  %t\nchecksum:    %s\n",
		info.Magic,
		info.Version,
		info.CapsuleIndex,
		humanize.Bytes(uint64(info.CapsuleSize)),
		info.DataSize,
		info.IsEncrypted,
		info.IsCompressed,
		info.Checksum,
	)
}
