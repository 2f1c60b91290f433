package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/longbox/pkg/cbz"
	"github.com/shishobooks/longbox/pkg/fileutils"
	"github.com/shishobooks/longbox/pkg/identity"
	"github.com/shishobooks/longbox/pkg/thumbnails"
)

func main() {
	log := logger.New()

	var opts struct {
		Pages           bool   `short:"p" long:"pages" description:"List every page entry"`
		ComicInfo       bool   `short:"x" long:"comicinfo" description:"Print the recognized fields back as ComicInfo.xml"`
		ThumbnailOutput string `short:"o" long:"thumbnail-output" description:"A directory to write the thumbnail into"`
		Height          int    `long:"height" default:"400" description:"Thumbnail height in pixels"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-cbz <path/to/file.cbz>")
		os.Exit(1)
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		log.Err(err).Fatal("path error")
	}

	archive, err := cbz.Open(path)
	if err != nil {
		log.Err(err).Fatal("cbz open error")
	}
	md := archive.Metadata()
	archive.Close()

	pageCount, err := cbz.CountPages(path)
	if err != nil {
		log.Err(err).Fatal("count pages error")
	}

	fmt.Printf("ID: %s\nPages: %d\n", identity.Of(path), pageCount)
	if n := cbz.IssueNumber(md, fileutils.NameWithoutExt(path)); n != nil {
		fmt.Printf("Issue Number: %g\n", *n)
	}

	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %s\n", k, md[k])
	}

	for _, role := range []string{"Writer", "Penciller", "Inker", "Colorist", "Letterer", "CoverArtist", "Editor"} {
		if creators := cbz.SplitCreators(md.Get(role)); len(creators) > 0 {
			fmt.Printf("%s(s): %v\n", role, creators)
		}
	}

	if opts.ComicInfo {
		if err := cbz.WriteComicInfo(os.Stdout, cbz.ComicInfoFromMetadata(md)); err != nil {
			log.Err(err).Fatal("comicinfo write error")
		}
	}

	if opts.Pages {
		pages, err := cbz.ListPages(path)
		if err != nil {
			log.Err(err).Fatal("list pages error")
		}
		for _, page := range pages {
			fmt.Printf("  %s\n", page.Name)
		}
	}

	if opts.ThumbnailOutput != "" {
		generator := thumbnails.NewGenerator(opts.ThumbnailOutput, opts.Height, 85)
		name, err := generator.Generate(context.Background(), path, identity.Of(path))
		if err != nil {
			log.Err(err).Fatal("thumbnail error")
		}
		fmt.Printf("Thumbnail: %s\n", generator.Path(*name))
	}
}
