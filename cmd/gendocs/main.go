package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra/doc"

	"github.com/lu-zhengda/launchdeck/internal/cli"
)

func main() {
	out := flag.String("out", "./docs", "output directory")
	flag.Parse()

	manDir := filepath.Join(*out, "man")
	mdDir := filepath.Join(*out, "cli")
	for _, dir := range []string{manDir, mdDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal(err)
		}
	}

	root := cli.RootCmd()
	root.DisableAutoGenTag = true
	header := &doc.GenManHeader{
		Title:   "LAUNCHDECK",
		Section: "1",
	}
	if err := doc.GenManTree(root, header, manDir); err != nil {
		log.Fatal(err)
	}
	if err := doc.GenMarkdownTree(root, mdDir); err != nil {
		log.Fatal(err)
	}
}
