package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/pkg/convert"
)

func main() {
	log := logger.New()

	var opts struct {
		Builtin bool          `short:"b" long:"builtin" description:"Extract with the built-in RAR reader instead of unrar"`
		Timeout time.Duration `short:"t" long:"timeout" default:"5m" description:"Give up after this long"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/convert-cbr <path/to/file.cbr>")
		os.Exit(1)
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		log.Err(err).Fatal("path error")
	}

	var extractor convert.Extractor = &convert.CommandExtractor{
		Command: "unrar",
		Args:    []string{"x", "-o+", "-y", "{archive}", "{dest}/"},
	}
	if opts.Builtin {
		extractor = convert.RarExtractor{}
	}

	converter := convert.NewConverter(filepath.Dir(path), "", opts.Timeout, extractor)
	target, err := converter.Convert(context.Background(), path)
	if err != nil {
		log.Err(err).Fatal("convert error")
	}
	fmt.Printf("Converted: %s\n", target)
}
