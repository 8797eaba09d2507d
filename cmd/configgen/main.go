package main

import (
	"log"

	"github.com/danmuck/labctl/internal/config"
	"github.com/spf13/pflag"
)

func main() {
	kind := pflag.StringP("kind", "k", config.KindHarness, "config kind: harness|bootstrap|mockapi")
	output := pflag.StringP("output", "o", "", "output path for config template (defaults to per-kind cmd path)")
	validate := pflag.Bool("validate", false, "validate an existing config file")
	input := pflag.StringP("input", "i", "", "config path for validation (defaults to per-kind cmd path)")
	force := pflag.BoolP("force", "f", false, "overwrite existing config file")
	pflag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		if err := config.Validate(*kind, path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

func defaultPath(kind string) string {
	path, err := config.DefaultPath(kind)
	if err != nil {
		log.Fatal(err)
	}
	return path
}
