package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"strings"

	"blockedit.ai/internal/atlas"
	"blockedit.ai/internal/blocks"
	"blockedit.ai/internal/editor"
)

func listCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	c := addCommon(fs)
	_ = fs.Parse(args)

	sess := c.open(true)
	defer sess.Close()
	for i, r := range sess.Records() {
		printRecord(i, r)
	}
}

func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	c := addCommon(fs)
	t := addTarget(fs)
	_ = fs.Parse(args)

	sess := c.open(true)
	defer sess.Close()
	i := t.resolve(sess)
	r, err := sess.Record(i)
	if err != nil {
		fail("show", err)
	}
	b, _ := json.MarshalIndent(r, "", "  ")
	fmt.Println(string(b))
	for _, f := range []blocks.Face{blocks.FaceSide, blocks.FaceTop, blocks.FaceBottom} {
		cell, inherited := r.Texture(f)
		note := ""
		if inherited {
			note = " (inherits side)"
		}
		fmt.Printf("%-12s %s%s\n", f, cell, note)
	}
}

// save writes the session back and reports the result.
func save(sess *editor.Session) {
	res, err := sess.Save(context.Background(), "")
	if err != nil {
		fail("save", err)
	}
	if !res.Changed {
		fmt.Println("no changes")
		return
	}
	fmt.Printf("saved %s (%d bytes)", res.Path, res.Bytes)
	if res.Backup != "" {
		fmt.Printf(" backup=%s", res.Backup)
	}
	fmt.Println()
}

func addCmd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	c := addCommon(fs)
	_ = fs.Parse(args)

	sess := c.open(false)
	defer sess.Close()
	i, r := sess.Add()
	if fs.NArg() > 0 {
		p, err := blocks.ParsePatch(fs.Args())
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad assignment:", err)
			exit(2)
		}
		if r, err = sess.Update(i, p); err != nil {
			fail("update", err)
		}
	}
	printRecord(i, r)
	save(sess)
}

func deleteCmd(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	c := addCommon(fs)
	t := addTarget(fs)
	_ = fs.Parse(args)

	sess := c.open(false)
	defer sess.Close()
	r, err := sess.Delete(t.resolve(sess))
	if err != nil {
		fail("delete", err)
	}
	fmt.Println("deleted", r.Label())
	save(sess)
}

func setCmd(args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	c := addCommon(fs)
	t := addTarget(fs)
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: blockedit set -id N key=value ...")
		exit(2)
	}
	p, err := blocks.ParsePatch(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad assignment:", err)
		exit(2)
	}
	sess := c.open(false)
	defer sess.Close()
	i := t.resolve(sess)
	r, err := sess.Update(i, p)
	if err != nil {
		fail("update", err)
	}
	printRecord(i, r)
	save(sess)
}

func presetCmd(args []string) {
	fs := flag.NewFlagSet("preset", flag.ExitOnError)
	c := addCommon(fs)
	t := addTarget(fs)
	_ = fs.Parse(args)

	sess := c.open(false)
	defer sess.Close()
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: blockedit preset -id N <%s>\n", strings.Join(sess.Presets().Names(), "|"))
		exit(2)
	}
	i := t.resolve(sess)
	r, err := sess.ApplySoundPreset(i, strings.ToUpper(fs.Arg(0)))
	if err != nil {
		fail("preset", err)
	}
	printRecord(i, r)
	save(sess)
}

func parseFaceFlag(s string) blocks.Face {
	f, err := blocks.ParseFace(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -face:", err)
		exit(2)
	}
	return f
}

func parseCellFlag(s string) blocks.Cell {
	cell, err := blocks.ParseCell(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -cell:", err)
		exit(2)
	}
	return cell
}

func textureCmd(args []string) {
	fs := flag.NewFlagSet("texture", flag.ExitOnError)
	c := addCommon(fs)
	t := addTarget(fs)
	face := fs.String("face", "side", "side, top or bottom")
	cell := fs.String("cell", "", "atlas cell col,row")
	reset := fs.Bool("reset", false, "reset the face (side to [0, 0], top/bottom to inherit)")
	_ = fs.Parse(args)

	f := parseFaceFlag(*face)
	if !*reset && strings.TrimSpace(*cell) == "" {
		fmt.Fprintln(os.Stderr, "missing -cell or -reset")
		exit(2)
	}
	sess := c.open(false)
	defer sess.Close()
	i := t.resolve(sess)

	var (
		r   blocks.Record
		err error
	)
	if *reset {
		r, err = sess.ResetTexture(i, f)
	} else {
		r, err = sess.PickTexture(i, f, parseCellFlag(*cell))
	}
	if err != nil {
		fail("texture", err)
	}
	printRecord(i, r)
	save(sess)
}

func uploadCmd(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	c := addCommon(fs)
	t := addTarget(fs)
	face := fs.String("face", "side", "side, top or bottom")
	cell := fs.String("cell", "", "atlas cell col,row to paste into")
	_ = fs.Parse(args)

	if fs.NArg() != 1 || strings.TrimSpace(*cell) == "" {
		fmt.Fprintf(os.Stderr, "usage: blockedit upload -id N -cell c,r [-face top] image (%s)\n", strings.Join(atlas.Formats(), " "))
		exit(2)
	}
	f := parseFaceFlag(*face)
	dst := parseCellFlag(*cell)

	sess := c.open(false)
	defer sess.Close()
	i := t.resolve(sess)
	r, err := sess.UploadTexture(i, f, fs.Arg(0), dst)
	if err != nil {
		fail("upload", err)
	}
	fmt.Printf("pasted %s into %s at %s\n", fs.Arg(0), sess.Atlas().Path(), dst)
	printRecord(i, r)
	save(sess)
}

func tileCmd(args []string) {
	fs := flag.NewFlagSet("tile", flag.ExitOnError)
	c := addCommon(fs)
	t := addTarget(fs)
	cell := fs.String("cell", "", "atlas cell col,row (default: the block's face)")
	face := fs.String("face", "side", "face previewed when -cell is empty")
	overlay := fs.Bool("overlay", false, "write the whole atlas with grid lines instead of one tile")
	out := fs.String("o", "tile.png", "output PNG path")
	_ = fs.Parse(args)

	sess := c.open(true)
	defer sess.Close()
	a := sess.Atlas()

	var img image.Image
	switch {
	case *overlay:
		var sel *blocks.Cell
		if strings.TrimSpace(*cell) != "" {
			c := parseCellFlag(*cell)
			sel = &c
		}
		img = a.Overlay(sel)
	case strings.TrimSpace(*cell) != "":
		tile, err := a.Tile(parseCellFlag(*cell))
		if err != nil {
			fail("tile", err)
		}
		img = tile
	default:
		r, err := sess.Record(t.resolve(sess))
		if err != nil {
			fail("tile", err)
		}
		prev, inherited, err := a.Preview(r, parseFaceFlag(*face))
		if err != nil {
			fail("tile", err)
		}
		if inherited {
			fmt.Println("face inherits the side texture (dimmed)")
		}
		img = prev
	}

	f, err := os.Create(*out)
	if err != nil {
		fail("create", err)
	}
	if err := atlas.EncodePNG(f, img); err != nil {
		_ = f.Close()
		fail("write", err)
	}
	if err := f.Close(); err != nil {
		fail("write", err)
	}
	fmt.Println("wrote", *out)
}
