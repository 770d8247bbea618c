// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

// Command aspectgen generates the class registrations and selector constants
// of the types annotated with the `//aspect:class` directive, so that rules
// can find them by class name. It is meant to be used with `go generate`:
//
//	//go:generate go run github.com/sqreen/go-aspect/tools/aspectgen user.go
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
)

const defaultOutput = "aspect_gen.go"

type options struct {
	Output  string
	Verbose bool
	Help    bool
	Files   []string
}

func parseCommandLine(args []string) (*options, error) {
	var opts options
	fs := pflag.NewFlagSet("aspectgen", pflag.ContinueOnError)
	fs.StringVarP(&opts.Output, "output", "o", defaultOutput, "output file name, relative to the directory of the first source file")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose mode")
	fs.BoolVarP(&opts.Help, "help", "h", false, "print this usage message")
	fs.Usage = func() {}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Help {
		return &opts, nil
	}
	opts.Files = fs.Args()
	if len(opts.Files) == 0 {
		return nil, errors.New("unexpected empty list of source files")
	}
	if opts.Output == "" {
		return nil, errors.New("unexpected empty output file name")
	}
	if !filepath.IsAbs(opts.Output) {
		opts.Output = filepath.Join(filepath.Dir(opts.Files[0]), opts.Output)
	}
	return &opts, nil
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("aspectgen: ")
	log.SetOutput(os.Stderr)

	opts, err := parseCommandLine(os.Args[1:])
	if err != nil {
		log.Println(err)
		printUsage()
		os.Exit(1)
	}
	if opts.Help {
		printUsage()
		os.Exit(0)
	}
	if !opts.Verbose {
		log.SetOutput(io.Discard)
	}

	if err := run(opts); err != nil {
		// Errors are always shown
		log.SetOutput(os.Stderr)
		log.Println(err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	var g generator
	for _, src := range opts.Files {
		if filepath.Base(src) == filepath.Base(opts.Output) {
			log.Printf("skipping previously generated file `%s`", src)
			continue
		}
		log.Printf("parsing file `%s`", src)
		if err := g.addFile(src, nil); err != nil {
			return err
		}
	}

	file, err := g.generate()
	if err != nil {
		return err
	}
	if file == nil {
		log.Println("nothing to generate")
		return nil
	}

	output, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	defer output.Close()
	log.Printf("writing %d classes into `%s`", len(g.classes), opts.Output)
	return writeFile(file, output)
}

func printUsage() {
	const usageFormat = `Usage: %s [-v] [-o OUTPUT] FILES...

Generate the class registrations and selector constants of the types of FILES
annotated with the %s directive. FILES must belong to the same package.
The generated file registers the classes in the aspect class table so that
rules can find them by name, and declares the selector constants of their
exported methods declared in FILES.

Options:
        -h, --help
                Print this usage message.
        -v, --verbose
                Verbose mode.
        -o, --output
                Output file name (default %q), relative to the directory of
                the first source file.
`
	_, _ = fmt.Fprintf(os.Stderr, usageFormat, os.Args[0], classDirective, defaultOutput)
}
