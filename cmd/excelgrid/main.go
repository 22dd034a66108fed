package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/excelgrid/excelgrid"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "show":
		err = runShow(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("excelgrid: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  excelgrid serve [-config file] [-file book.xlsx] [-sheet name] [-listen addr] [-store path]
  excelgrid show -file book.xlsx -sheet name`)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	file := fs.String("file", "", "workbook to load")
	sheet := fs.String("sheet", "", "sheet holding the grid")
	listen := fs.String("listen", "", "listen address")
	storePath := fs.String("store", "", "bbolt database for persisted edits")
	fs.Parse(args)

	cfg := excelgrid.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := excelgrid.LoadServerConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	// flags override the config file
	if *file != "" {
		cfg.File = *file
	}
	if *sheet != "" {
		cfg.Sheet = *sheet
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *storePath != "" {
		cfg.Store = *storePath
	}
	if cfg.File == "" || cfg.Sheet == "" {
		return fmt.Errorf("a workbook file and sheet are required")
	}

	var store *excelgrid.Store
	if cfg.Store != "" {
		var err error
		store, err = excelgrid.OpenStore(cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	grid, err := loadGrid(cfg, store)
	if err != nil {
		return err
	}

	server := excelgrid.NewServer(grid)
	if store != nil {
		server = server.WithStore(store)
	}

	log.Printf("serving %s!%s on %s", cfg.File, cfg.Sheet, cfg.Listen)
	return http.ListenAndServe(cfg.Listen, server.Handler())
}

// loadGrid prefers the persisted state when the store already holds the
// sheet, otherwise it falls back to the workbook.
func loadGrid(cfg excelgrid.ServerConfig, store *excelgrid.Store) (*excelgrid.Grid, error) {
	if store != nil {
		stored, err := store.HasGrid(cfg.Sheet)
		if err != nil {
			return nil, err
		}
		if stored {
			return store.LoadGrid(cfg.Sheet)
		}
	}
	grid, err := excelgrid.ReadXlsx(cfg.File, cfg.Sheet)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.SaveGrid(grid); err != nil {
			return nil, err
		}
	}
	return grid, nil
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	file := fs.String("file", "", "workbook to load")
	sheet := fs.String("sheet", "", "sheet holding the grid")
	fs.Parse(args)

	if *file == "" || *sheet == "" {
		return fmt.Errorf("a workbook file and sheet are required")
	}

	grid, err := excelgrid.ReadXlsx(*file, *sheet)
	if err != nil {
		return err
	}

	snapshot, err := grid.Evaluate()
	if snapshot != nil {
		fmt.Print(snapshot)
	}
	return err
}
