// Command gdraco compresses and decompresses triangle meshes from the
// command line.
//
// Usage:
//
//	gdraco enc [options] <input.obj>   OBJ → Draco (use "-" for stdin)
//	gdraco dec [options] <input.drc>   Draco → OBJ (use "-" for stdin, -o - for stdout)
//	gdraco info <input.drc>            Display header and counts
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deepteams/draco"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "enc":
		err = runEnc(os.Args[2:])
	case "dec":
		err = runDec(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "gdraco: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "gdraco: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  gdraco enc [options] <input.obj>   Encode a Wavefront OBJ mesh to Draco
  gdraco dec [options] <input.drc>   Decode Draco to Wavefront OBJ
  gdraco info <input.drc>            Display header and counts

Use "-" as input to read from stdin, "-o -" to write to stdout.

Run "gdraco <command> -h" for command-specific options.
`)
}

// openInput returns an io.ReadCloser for the given path.
// If path is "-", stdin is returned (caller should not close).
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// createOutput returns the writer for path, stdout for "-".
func createOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// outputPath replaces the extension of input with ext, or returns "-"
// when reading stdin.
func outputPath(input, ext string) string {
	if input == "-" {
		return "-"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func enableVerbose() {
	draco.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

// --- enc ---

func runEnc(args []string) error {
	fs := flag.NewFlagSet("enc", flag.ContinueOnError)
	speed := fs.Int("s", 5, "encoding speed 0-10 (0 = best compression)")
	qp := fs.Int("qp", 0, "position quantization bits 1-30 (0=default, -1=lossless)")
	qn := fs.Int("qn", 0, "normal quantization bits 2-30 (0=default, -1=lossless)")
	qt := fs.Int("qt", 0, "texture coordinate quantization bits 1-30 (0=default, -1=lossless)")
	scheme := fs.String("scheme", "auto", "symbol coding scheme: auto/tagged/raw")
	nodedup := fs.Bool("nodedup", false, "keep duplicate points and values")
	verbose := fs.Bool("v", false, "log encoder decisions to stderr")
	output := fs.String("o", "", `output path (default: <input>.drc, "-" for stdout)`)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("enc: missing input file\nUsage: gdraco enc [options] <input.obj>")
	}
	inputPath := fs.Arg(0)
	if *verbose {
		enableVerbose()
	}

	opts := &draco.EncoderOptions{
		Speed:        *speed,
		PositionBits: *qp,
		NormalBits:   *qn,
		TexCoordBits: *qt,
		Deduplicate:  !*nodedup,
	}
	switch *scheme {
	case "auto":
		opts.SymbolScheme = draco.SchemeAuto
	case "tagged":
		opts.SymbolScheme = draco.SchemeTagged
	case "raw":
		opts.SymbolScheme = draco.SchemeRaw
	default:
		return fmt.Errorf("enc: unknown scheme %q", *scheme)
	}

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()
	m, err := readOBJ(in)
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}
	if *verbose {
		lo, hi := m.Bounds()
		draco.Logger().Debug("gdraco: read OBJ", "faces", m.NumFaces(), "points", m.NumPoints, "min", lo, "max", hi)
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := draco.Encode(&buf, m, opts); err != nil {
		return fmt.Errorf("enc: %w", err)
	}
	elapsed := time.Since(start)

	outPath := *output
	if outPath == "" {
		outPath = outputPath(inputPath, ".drc")
	}
	out, err := createOutput(outPath)
	if err != nil {
		return err
	}
	if _, err := out.Write(buf.Bytes()); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if outPath != "-" {
		fmt.Fprintf(os.Stderr, "Encoded %d faces, %d points → %s (%d bytes, %v)\n",
			m.NumFaces(), m.NumPoints, outPath, buf.Len(), elapsed.Round(time.Microsecond))
	}
	return nil
}

// --- dec ---

func runDec(args []string) error {
	fs := flag.NewFlagSet("dec", flag.ContinueOnError)
	maxFaces := fs.Int("max_faces", 0, "reject meshes with more faces (0=default limit)")
	verbose := fs.Bool("v", false, "log decoder decisions to stderr")
	output := fs.String("o", "", `output path (default: <input>.obj, "-" for stdout)`)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dec: missing input file\nUsage: gdraco dec [options] <input.drc>")
	}
	inputPath := fs.Arg(0)
	if *verbose {
		enableVerbose()
	}

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	start := time.Now()
	m, err := draco.DecodeWithOptions(in, &draco.DecoderOptions{MaxFaces: *maxFaces})
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}
	elapsed := time.Since(start)

	outPath := *output
	if outPath == "" {
		outPath = outputPath(inputPath, ".obj")
	}
	out, err := createOutput(outPath)
	if err != nil {
		return err
	}
	if err := writeOBJ(out, m); err != nil {
		out.Close()
		return fmt.Errorf("dec: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	if outPath != "-" {
		fmt.Fprintf(os.Stderr, "Decoded %d faces, %d points → %s (%v)\n",
			m.NumFaces(), m.NumPoints, outPath, elapsed.Round(time.Microsecond))
	}
	return nil
}

// --- info ---

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info: missing input file\nUsage: gdraco info <input.drc>")
	}
	inputPath := args[0]

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	feat, err := draco.GetFeatures(in)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	name := inputPath
	if inputPath == "-" {
		name = "<stdin>"
	}

	fmt.Printf("File:       %s\n", name)
	fmt.Printf("Version:    %d.%d\n", feat.VersionMajor, feat.VersionMinor)
	fmt.Printf("Traversal:  %s\n", feat.Traversal)
	fmt.Printf("Faces:      %d\n", feat.NumFaces)
	fmt.Printf("Vertices:   %d\n", feat.NumVertices)
	names := make([]string, len(feat.AttributeTypes))
	for i, t := range feat.AttributeTypes {
		names[i] = t.String()
	}
	fmt.Printf("Attributes: %s\n", strings.Join(names, ", "))
	fmt.Printf("Metadata:   %v\n", feat.HasMetadata)

	if inputPath != "-" {
		fi, err := os.Stat(inputPath)
		if err == nil {
			fmt.Printf("File size:  %d bytes\n", fi.Size())
		}
	}

	return nil
}
