package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"blockedit.ai/internal/blocks"
	"blockedit.ai/internal/config"
	"blockedit.ai/internal/editor"
)

var commands = map[string]func([]string){
	"list":    listCmd,
	"show":    showCmd,
	"add":     addCmd,
	"delete":  deleteCmd,
	"set":     setCmd,
	"preset":  presetCmd,
	"texture": textureCmd,
	"upload":  uploadCmd,
	"tile":    tileCmd,
	"check":   checkCmd,
	"region":  regionCmd,
	"export":  exportCmd,
	"import":  importCmd,
	"init":    initCmd,
	"backups": backupsCmd,
	"restore": restoreCmd,
	"history": historyCmd,
	"journal": journalCmd,
	"serve":   serveCmd,
}

func main() {
	if len(os.Args) >= 2 {
		if cmd, ok := commands[os.Args[1]]; ok {
			cmd(os.Args[2:])
			return
		}
		if os.Args[1] != "-h" && os.Args[1] != "help" && !strings.HasPrefix(os.Args[1], "-") {
			fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
			usage()
			exit(2)
		}
	}
	listCmd(os.Args[1:])
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: blockedit <command> [flags]")
	fmt.Fprintln(os.Stderr, "commands: list show add delete set preset texture upload tile check region export import init backups restore history journal serve")
}

// common flags shared by every subcommand.
type common struct {
	config  *string
	file    *string
	verbose *bool
}

func addCommon(fs *flag.FlagSet) *common {
	return &common{
		config:  fs.String("config", "", "path to blockedit.yaml (default: built-in layout under the working directory)"),
		file:    fs.String("file", "", "source file holding BLOCK_DATA (overrides source_path)"),
		verbose: fs.Bool("v", false, "log session activity to stderr"),
	}
}

func (c *common) cfg() config.Config {
	cfg, err := config.Load(*c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		exit(1)
	}
	if strings.TrimSpace(*c.file) != "" {
		cfg.SourcePath = *c.file
	}
	return cfg
}

func (c *common) logger() *log.Logger {
	if *c.verbose {
		return log.New(os.Stderr, "[blockedit] ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// open returns a session with the source file loaded. The session is closed
// by exit on error paths.
func (c *common) open(ephemeral bool) *editor.Session {
	sess, err := editor.Open(c.cfg(), editor.Options{Logger: c.logger(), Ephemeral: ephemeral})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		exit(1)
	}
	onExit(sess.Close)
	if err := sess.Load(""); err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		exit(1)
	}
	return sess
}

// target picks a block by -id, falling back to -index.
type target struct {
	id    *string
	index *int
}

func addTarget(fs *flag.FlagSet) *target {
	return &target{
		id:    fs.String("id", "", "block id"),
		index: fs.Int("index", -1, "block position in the file (used when -id is empty)"),
	}
}

func (t *target) resolve(sess *editor.Session) int {
	if strings.TrimSpace(*t.id) != "" {
		id, err := strconv.Atoi(strings.TrimSpace(*t.id))
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -id:", err)
			exit(2)
		}
		for i, r := range sess.Records() {
			if r.ID == id {
				return i
			}
		}
		fmt.Fprintf(os.Stderr, "no block with id %d\n", id)
		exit(1)
	}
	if *t.index < 0 {
		fmt.Fprintln(os.Stderr, "missing -id or -index")
		exit(2)
	}
	return *t.index
}

var osExit = os.Exit

var cleanup []func() error

// onExit registers f to run when a command bails out through exit, where
// deferred calls would be skipped.
func onExit(f func() error) { cleanup = append(cleanup, f) }

func exit(code int) {
	for i := len(cleanup) - 1; i >= 0; i-- {
		if err := cleanup[i](); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
	}
	cleanup = nil
	osExit(code)
}

func fail(what string, err error) {
	fmt.Fprintln(os.Stderr, what+":", err)
	exit(1)
}

func printRecord(i int, r blocks.Record) {
	fmt.Printf("%3d  %-24s side=%s", i, r.Label(), r.Atlas)
	if r.AtlasTop != nil {
		fmt.Printf(" top=%s", *r.AtlasTop)
	}
	if r.AtlasBottom != nil {
		fmt.Printf(" bottom=%s", *r.AtlasBottom)
	}
	fmt.Printf(" solid=%t transparent=%t", r.Solid, r.Transparent)
	if r.Sound == nil {
		fmt.Print(" sound=null")
	} else {
		fmt.Printf(" sound=%s/%s/%s", r.Sound.Step, r.Sound.Break, r.Sound.Place)
	}
	fmt.Println()
}
