// jsonapi inspects and converts JSON:API documents.
//
//	jsonapi convert --from json --to msgpack < doc.json > doc.msgpack
//	jsonapi refs --from msgpack < doc.msgpack
//
// convert transcodes token by token without building a document tree.
// refs lists every resource and resource identifier in a document with
// the JSON pointer it was found at.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/RobertWHurst/jsonapi"
	"github.com/RobertWHurst/jsonapi/encoders/msgpack"
	"github.com/RobertWHurst/jsonapi/encoders/protobuf"
)

var formats = map[string]jsonapi.Format{
	jsonapi.JSON.Name():    jsonapi.JSON,
	msgpack.Format.Name():  msgpack.Format,
	protobuf.Format.Name(): protobuf.Format,
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		printUsage(stderr)
		return nil
	}
	command, args := args[0], args[1:]

	var from, to, input, output, logLevel string
	flagSet := pflag.NewFlagSet("jsonapi "+command, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&from, "from", "json", "input format ("+formatNames()+")")
	flagSet.StringVar(&input, "in", "", "input file (default: stdin)")
	flagSet.StringVar(&output, "out", "", "output file (default: stdout)")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	if command == "convert" {
		flagSet.StringVar(&to, "to", "json", "output format ("+formatNames()+")")
	}
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return errors.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	logger, err := newLogger(stderr, logLevel)
	if err != nil {
		return err
	}

	src, err := lookupFormat(from)
	if err != nil {
		return err
	}
	in := stdin
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return errors.Wrap(err, "open input")
		}
		defer f.Close()
		in = f
	}
	out := stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		defer f.Close()
		out = f
	}

	switch command {
	case "convert":
		dst, err := lookupFormat(to)
		if err != nil {
			return err
		}
		level.Debug(logger).Log("msg", "converting", "from", src.Name(), "to", dst.Name())
		return jsonapi.Copy(dst.NewWriter(out), src.NewReader(in))
	case "refs":
		refs, err := listReferences(src.NewReader(in))
		if err != nil {
			return err
		}
		level.Info(logger).Log("msg", "listed references", "count", len(refs))
		for _, ref := range refs {
			fmt.Fprintf(out, "%s\t%s\t%s\n", ref.Path, ref.Type, ref.ID)
		}
		return nil
	}
	printUsage(stderr)
	return errors.Errorf("unknown command %q", command)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: jsonapi <command> [flags]

Commands:
  convert   transcode a document between formats (%s)
  refs      list resource references and where they occur

Run "jsonapi <command> --help" for the flags of a command.
`, formatNames())
}

func formatNames() string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func lookupFormat(name string) (jsonapi.Format, error) {
	f, ok := formats[name]
	if !ok {
		return nil, errors.Errorf("unknown format %q, want one of %s", name, formatNames())
	}
	return f, nil
}

func newLogger(w io.Writer, name string) (log.Logger, error) {
	var allow level.Option
	switch name {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		return nil, errors.Errorf("unknown log level %q", name)
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.DefaultTimestampUTC), nil
}

type reference struct {
	jsonapi.Reference
	Path string
}

// listReferences scans a document and returns the reference of every
// object in a resource position: primary data, included and relationship
// data.
func listReferences(r jsonapi.TokenReader) ([]reference, error) {
	c, err := jsonapi.NewCursor(r)
	if err != nil {
		return nil, err
	}
	var refs []reference
	for c.Kind() != jsonapi.KindEOF {
		if c.Kind() == jsonapi.KindBeginObject && resourcePosition(c.Path()) {
			ref, ok, err := jsonapi.ReadReference(c.Fork())
			if err != nil {
				return nil, err
			}
			if ok {
				refs = append(refs, reference{Reference: ref, Path: c.Path()})
			}
		}
		if err := c.Advance(); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// resourcePosition reports whether path names a resource object or
// identifier: /data, /data/N, /included/N, or the data of a relationship
// (.../relationships/NAME/data, optionally followed by /N).
func resourcePosition(path string) bool {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if n := len(parts); n > 0 {
		if _, err := strconv.Atoi(parts[n-1]); err == nil {
			parts = parts[:n-1]
		}
	}
	switch n := len(parts); {
	case n == 1:
		return parts[0] == "data" || parts[0] == "included"
	case n >= 3:
		return parts[n-1] == "data" && parts[n-3] == "relationships"
	}
	return false
}
