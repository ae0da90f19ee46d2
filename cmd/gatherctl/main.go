package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"example.com/gatherview/internal/common"
	"example.com/gatherview/internal/gather"
	"example.com/gatherview/internal/report"
	"example.com/gatherview/internal/segy"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "info":
		infoCmd(os.Args[2:])
	case "window":
		windowCmd(os.Args[2:])
	case "headers":
		headersCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`gatherctl %s (built %s) <command> [options]

Commands:
  info     --in <file.sgy> [--text]
  window   --in <file.sgy> [--start <n>] [--width <n>] [--head1-pos <n>] [--head1-fmt <code>] [--head2-pos <n>] [--head2-fmt <code>] [--out <window.json>] [--metrics]
  headers  --in <file.sgy> [--start <n>] [--width <n>] [--head1-pos <n>] [--head1-fmt <code>] [--head2-pos <n>] [--head2-fmt <code>] [--out <file.ndjson>]
  report   --in <file.sgy> [--start <n>] [--width <n>] [--head1-pos <n>] [--head1-fmt <code>] [--head2-pos <n>] [--head2-fmt <code>] --out <summary.pdf>

Header format codes: long, float, ibm_float, short, string (aliases l, f, ibm, h, s).
`, version, buildDate)
}

type headerFlags struct {
	head1Pos *int
	head1Fmt *string
	head2Pos *int
	head2Fmt *string
}

func addHeaderFlags(fs *flag.FlagSet) headerFlags {
	return headerFlags{
		head1Pos: fs.Int("head1-pos", gather.DefaultHead1Pos, "byte position of the first header field"),
		head1Fmt: fs.String("head1-fmt", string(gather.FormatShort), "format code of the first header field"),
		head2Pos: fs.Int("head2-pos", gather.DefaultHead2Pos, "byte position of the second header field"),
		head2Fmt: fs.String("head2-fmt", string(gather.FormatLong), "format code of the second header field"),
	}
}

func (h headerFlags) specs() (gather.HeaderFieldSpec, gather.HeaderFieldSpec, error) {
	code1, err := gather.ParseFormatCode(*h.head1Fmt)
	if err != nil {
		return gather.HeaderFieldSpec{}, gather.HeaderFieldSpec{}, fmt.Errorf("head1: %w", err)
	}
	head1, err := gather.NewHeaderFieldSpec(*h.head1Pos, code1)
	if err != nil {
		return gather.HeaderFieldSpec{}, gather.HeaderFieldSpec{}, fmt.Errorf("head1: %w", err)
	}
	code2, err := gather.ParseFormatCode(*h.head2Fmt)
	if err != nil {
		return gather.HeaderFieldSpec{}, gather.HeaderFieldSpec{}, fmt.Errorf("head2: %w", err)
	}
	head2, err := gather.NewHeaderFieldSpec(*h.head2Pos, code2)
	if err != nil {
		return gather.HeaderFieldSpec{}, gather.HeaderFieldSpec{}, fmt.Errorf("head2: %w", err)
	}
	return head1, head2, nil
}

func openSession(path string, head1, head2 gather.HeaderFieldSpec, start, width int) (*segy.Reader, *gather.Session, error) {
	reader, err := segy.Open(path)
	if err != nil {
		return nil, nil, err
	}
	session, err := gather.OpenSession(reader, head1, head2)
	if err != nil {
		reader.Close()
		return nil, nil, err
	}
	if _, err := session.SetWindow(start, width); err != nil {
		session.Close()
		reader.Close()
		return nil, nil, err
	}
	return reader, session, nil
}

func sampleFormatName(code int) string {
	switch code {
	case segy.SampleFormatIBMFloat:
		return "1 (IBM float)"
	case segy.SampleFormatInt32:
		return "2 (int32)"
	case segy.SampleFormatInt16:
		return "3 (int16)"
	case segy.SampleFormatIEEEFloat:
		return "5 (IEEE float)"
	case segy.SampleFormatInt8:
		return "8 (int8)"
	}
	return fmt.Sprintf("%d (unknown)", code)
}

func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := fs.String("in", "", "input .sgy")
	showText := fs.Bool("text", false, "print the EBCDIC text header")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	reader, err := segy.Open(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()

	bhead := reader.BinaryHeader()
	traceLen := float64(bhead.NumSamples) * float64(bhead.SampleInterval) * 0.001
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "file\t%s\n", reader.Path())
	fmt.Fprintf(w, "traces\t%d\n", reader.TotalTraces())
	fmt.Fprintf(w, "samples per trace\t%d\n", bhead.NumSamples)
	fmt.Fprintf(w, "sample interval\t%d us\n", bhead.SampleInterval)
	fmt.Fprintf(w, "trace length\t%.1f ms\n", traceLen)
	fmt.Fprintf(w, "sample format\t%s\n", sampleFormatName(reader.SampleFormat()))
	w.Flush()

	if *showText {
		fmt.Println()
		for _, line := range reader.TextHeader() {
			fmt.Println(line)
		}
	}
}

func windowCmd(args []string) {
	fs := flag.NewFlagSet("window", flag.ExitOnError)
	in := fs.String("in", "", "input .sgy")
	start := fs.Int("start", 1, "first trace of the window (1-based)")
	width := fs.Int("width", gather.DefaultWindowWidth, "number of traces in the window")
	headers := addHeaderFlags(fs)
	out := fs.String("out", "", "write the resolved window as JSON")
	metricsFlag := fs.Bool("metrics", false, "print read throughput metrics")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	head1, head2, err := headers.specs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	reader, err := segy.Open(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()
	session, err := gather.OpenSession(reader, head1, head2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open session: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	var metrics *common.Metrics
	if *metricsFlag {
		metrics = common.NewMetrics()
		metrics.Start()
		session.SetMetrics(metrics)
	}
	win, err := session.SetWindow(*start, *width)
	if err != nil {
		fmt.Fprintf(os.Stderr, "set window: %v\n", err)
		os.Exit(1)
	}

	traces := session.Traces()
	min, max, haveSample := float32(0), float32(0), false
	for _, trace := range traces {
		for _, v := range trace {
			if !haveSample {
				min, max, haveSample = v, v, true
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "resolved start\t%d\n", win.Start)
	fmt.Fprintf(w, "resolved width\t%d\n", win.Width())
	fmt.Fprintf(w, "trace range\t[%d, %d)\n", win.T0, win.T1)
	if haveSample {
		fmt.Fprintf(w, "sample range\t%g to %g\n", min, max)
	} else {
		fmt.Fprintf(w, "sample range\tempty window\n")
	}
	w.Flush()

	if *out != "" {
		head1Vals, head2Vals := session.HeaderValues()
		doc := windowDocument{
			Start:     win.Start,
			Width:     win.Width(),
			T0:        win.T0,
			T1:        win.T1,
			Head1Vals: head1Vals,
			Head2Vals: head2Vals,
		}
		if haveSample {
			doc.SampleMin = min
			doc.SampleMax = max
		}
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			f.Close()
			fmt.Fprintf(os.Stderr, "write output: %v\n", err)
			os.Exit(1)
		}
		f.Close()
	}

	if metrics != nil {
		metrics.Stop()
		fmt.Println(metrics.Snapshot().String())
	}
}

// windowDocument is the JSON form of a resolved, loaded window.
type windowDocument struct {
	Start     int       `json:"start"`
	Width     int       `json:"width"`
	T0        int       `json:"t0"`
	T1        int       `json:"t1"`
	SampleMin float32   `json:"sampleMin"`
	SampleMax float32   `json:"sampleMax"`
	Head1Vals []float64 `json:"head1Vals"`
	Head2Vals []float64 `json:"head2Vals"`
}

// headerRecord mirrors the daemon's NDJSON stream so the two outputs can be
// consumed by the same tooling.
type headerRecord struct {
	Trace int     `json:"trace"`
	Head1 float64 `json:"head1"`
	Head2 float64 `json:"head2"`
}

func headersCmd(args []string) {
	fs := flag.NewFlagSet("headers", flag.ExitOnError)
	in := fs.String("in", "", "input .sgy")
	start := fs.Int("start", 1, "first trace of the window (1-based)")
	width := fs.Int("width", gather.DefaultWindowWidth, "number of traces in the window")
	headers := addHeaderFlags(fs)
	out := fs.String("out", "", "output NDJSON file (default stdout)")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	head1, head2, err := headers.specs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	reader, session, err := openSession(*in, head1, head2, *start, *width)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer reader.Close()
	defer session.Close()

	dst := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		dst = f
	}

	win := session.Window()
	head1Vals, head2Vals := session.HeaderValues()
	enc := json.NewEncoder(dst)
	for i := win.T0; i < win.T1; i++ {
		rec := headerRecord{
			Trace: i + 1,
			Head1: head1Vals[i-win.T0],
			Head2: head2Vals[i-win.T0],
		}
		if err := enc.Encode(rec); err != nil {
			fmt.Fprintf(os.Stderr, "write record: %v\n", err)
			os.Exit(1)
		}
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "input .sgy")
	start := fs.Int("start", 1, "first trace of the window (1-based)")
	width := fs.Int("width", gather.DefaultWindowWidth, "number of traces in the window")
	headers := addHeaderFlags(fs)
	out := fs.String("out", "summary.pdf", "output PDF file")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	head1, head2, err := headers.specs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sha, size, err := common.Sha256OfFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fingerprint: %v\n", err)
		os.Exit(1)
	}
	reader, session, err := openSession(*in, head1, head2, *start, *width)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer reader.Close()
	defer session.Close()

	head1Vals, head2Vals := session.HeaderValues()
	sum := report.FileSummary{
		Path:         reader.Path(),
		Sha256:       sha,
		SizeBytes:    size,
		TotalTraces:  session.TotalTraces(),
		NumSamples:   session.NumSamples(),
		SampleRateUs: session.SampleInterval(),
		TraceLenMs:   session.TraceLengthMs(),
		SampleFormat: sampleFormatName(reader.SampleFormat()),
		TextHeader:   reader.TextHeader(),
		Window:       session.Window(),
		Head1:        head1,
		Head2:        head2,
		Head1Vals:    head1Vals,
		Head2Vals:    head2Vals,
	}
	if err := report.SaveSummaryPDF(sum, *out); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *out)
}
