package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"

	"blockedit.ai/internal/blocks"
	"blockedit.ai/internal/codec/blockjs"
	"blockedit.ai/internal/codec/blockjson"
	"blockedit.ai/internal/persistence/backup"
	"blockedit.ai/internal/persistence/indexdb"
	persistlog "blockedit.ai/internal/persistence/log"
	"blockedit.ai/internal/persistence/sourcefile"
)

func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	c := addCommon(fs)
	timeout := fs.Duration("timeout", blockjs.DefaultEvalTimeout, "javascript evaluation timeout")
	_ = fs.Parse(args)

	cfg := c.cfg()
	f, err := sourcefile.Read(cfg.SourcePath)
	if err != nil {
		fail("read", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	rep, err := blockjs.Check(ctx, f.Text)
	if err != nil {
		fail("check", err)
	}
	for _, finding := range rep.Findings {
		fmt.Println(finding)
	}
	fmt.Printf("%s: decoded=%d evaluated=%d findings=%d\n", cfg.SourcePath, rep.Decoded, rep.Evaluated, len(rep.Findings))
	if !rep.OK() {
		exit(1)
	}
}

func regionCmd(args []string) {
	fs := flag.NewFlagSet("region", flag.ExitOnError)
	c := addCommon(fs)
	toClipboard := fs.Bool("copy", false, "copy the table text to the clipboard instead of printing it")
	canonical := fs.Bool("canonical", false, "print the table as it would be saved")
	_ = fs.Parse(args)

	cfg := c.cfg()
	f, err := sourcefile.Read(cfg.SourcePath)
	if err != nil {
		fail("read", err)
	}
	r, err := blockjs.Locate(f.Text)
	if err != nil {
		fail("region", err)
	}
	text := r.Of(f.Text)
	if *canonical {
		recs, err := blockjs.Decode(f.Text)
		if err != nil {
			fail("decode", err)
		}
		if text, err = blockjs.EncodeRegion(recs); err != nil {
			fail("encode", err)
		}
	}
	if *toClipboard {
		if err := clipboard.WriteAll(text); err != nil {
			fail("clipboard", err)
		}
		fmt.Printf("copied %s to the clipboard\n", humanize.Bytes(uint64(len(text))))
		return
	}
	fmt.Print(text)
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	c := addCommon(fs)
	out := fs.String("o", "", "output JSON path (default: stdout)")
	schema := fs.Bool("schema", false, "print the JSON schema instead of the blocks")
	_ = fs.Parse(args)

	if *schema {
		fmt.Println(blockjson.SchemaText())
		return
	}
	sess := c.open(true)
	defer sess.Close()
	b, err := blockjson.Marshal(sess.Records())
	if err != nil {
		fail("marshal", err)
	}
	if *out == "" {
		_, _ = os.Stdout.Write(b)
		return
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		fail("write", err)
	}
	fmt.Printf("exported %d blocks to %s\n", sess.Status().Count, *out)
}

func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	c := addCommon(fs)
	in := fs.String("i", "", "input JSON path")
	_ = fs.Parse(args)

	if strings.TrimSpace(*in) == "" {
		fmt.Fprintln(os.Stderr, "missing -i")
		exit(2)
	}
	raw, err := os.ReadFile(*in)
	if err != nil {
		fail("read", err)
	}
	recs, err := blockjson.Unmarshal(raw)
	if err != nil {
		fail("import", err)
	}
	sess := c.open(false)
	defer sess.Close()
	sess.Replace(recs, "import "+*in)
	fmt.Printf("imported %d blocks from %s\n", len(recs), *in)
	save(sess)
}

func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	c := addCommon(fs)
	from := fs.String("from", "", "seed the table from a JSON export (default: a single Air block)")
	_ = fs.Parse(args)

	cfg := c.cfg()
	recs := []blocks.Record{{ID: 0, Name: "Air", Transparent: true}}
	if *from != "" {
		raw, err := os.ReadFile(*from)
		if err != nil {
			fail("read", err)
		}
		if recs, err = blockjson.Unmarshal(raw); err != nil {
			fail("import", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SourcePath), 0o755); err != nil {
		fail("mkdir", err)
	}
	if _, err := sourcefile.Create(cfg.SourcePath, recs); err != nil {
		fail("init", err)
	}
	fmt.Printf("created %s with %d blocks\n", cfg.SourcePath, len(recs))
}

func backupsCmd(args []string) {
	fs := flag.NewFlagSet("backups", flag.ExitOnError)
	c := addCommon(fs)
	all := fs.Bool("all", false, "list backups of every file in the backup dir")
	_ = fs.Parse(args)

	cfg := c.cfg()
	store, err := backup.New(cfg.Backup.Dir, backup.Codec(cfg.Backup.Codec), cfg.Backup.Keep)
	if err != nil {
		fail("backups", err)
	}
	src := cfg.SourcePath
	if *all {
		src = ""
	}
	entries, err := store.List(src)
	if err != nil {
		fail("backups", err)
	}
	for _, e := range entries {
		fmt.Printf("%-20s %-8s %-4s %s\n", humanize.Time(e.Created), humanize.Bytes(uint64(e.Size)), e.Codec, e.Path)
	}
	if len(entries) == 0 {
		fmt.Println("no backups in", cfg.Backup.Dir)
	}
}

func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	c := addCommon(fs)
	from := fs.String("backup", "", "backup file to restore (default: the newest backup of the source file)")
	_ = fs.Parse(args)

	sess := c.open(false)
	defer sess.Close()
	path := strings.TrimSpace(*from)
	if path == "" {
		e, ok, err := sess.Backups().Latest(sess.Config().SourcePath)
		if err != nil {
			fail("backups", err)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "no backup found; provide -backup")
			exit(2)
		}
		path = e.Path
	}
	if err := sess.Restore(context.Background(), path, ""); err != nil {
		fail("restore", err)
	}
	fmt.Printf("restored %s from %s (%d blocks)\n", sess.Status().Path, path, sess.Status().Count)
}

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	c := addCommon(fs)
	limit := fs.Int("n", 20, "number of saves to list (0 = all)")
	id := fs.String("id", "", "show the saved versions of one block")
	saveID := fs.String("save", "", "list the blocks written by one save")
	_ = fs.Parse(args)

	cfg := c.cfg()
	idx, err := indexdb.OpenSQLite(cfg.IndexDB)
	if err != nil {
		fail("open index", err)
	}
	onExit(idx.Close)
	defer idx.Close()
	ctx := context.Background()

	switch {
	case *saveID != "":
		recs, err := idx.BlocksAt(ctx, *saveID)
		if err != nil {
			fail("history", err)
		}
		for i, r := range recs {
			printRecord(i, r)
		}
	case *id != "":
		n, err := strconv.Atoi(*id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -id:", err)
			exit(2)
		}
		saves, versions, err := idx.BlockHistory(ctx, cfg.SourcePath, n)
		if err != nil {
			fail("history", err)
		}
		for i := range saves {
			fmt.Printf("%s  %s\n", humanize.Time(saves[i].SavedAt), saves[i].SaveID)
			printRecord(i, versions[i])
		}
	default:
		saves, err := idx.History(ctx, cfg.SourcePath, *limit)
		if err != nil {
			fail("history", err)
		}
		for _, s := range saves {
			fmt.Printf("%s  %-16s blocks=%-4d %-8s %s\n", s.SaveID, humanize.Time(s.SavedAt), s.Blocks, humanize.Bytes(uint64(s.Bytes)), s.Digest[:12])
		}
		if len(saves) == 0 {
			fmt.Println("no saves recorded for", cfg.SourcePath)
		}
	}
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	c := addCommon(fs)
	since := fs.Duration("since", 0, "only entries newer than this (e.g. 2h)")
	op := fs.String("op", "", "only this operation (add, delete, update, preset, texture, save, ...)")
	id := fs.String("id", "", "only entries touching this block id")
	_ = fs.Parse(args)

	cfg := c.cfg()
	filter := persistlog.EditFilter{Op: *op}
	if *since > 0 {
		filter.Since = time.Now().Add(-*since)
	}
	if *id != "" {
		n, err := strconv.Atoi(*id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -id:", err)
			exit(2)
		}
		filter.ID = &n
	}
	entries, err := persistlog.ReadEdits(cfg.JournalDir, filter)
	if err != nil {
		fail("read journal", err)
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-13s", e.Time.Local().Format("2006-01-02 15:04:05"), e.Op)
		if e.ID != nil {
			line += fmt.Sprintf(" id=%d", *e.ID)
		}
		if e.Before != nil && e.After != nil {
			if diff := blockjs.DiffFields(*e.Before, *e.After); len(diff) > 0 {
				line += " changed=" + strings.Join(diff, ",")
			}
		}
		if e.Path != "" {
			line += " " + e.Path
		}
		if e.Detail != "" {
			line += " (" + e.Detail + ")"
		}
		fmt.Println(line)
	}
}
