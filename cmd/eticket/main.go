// Command-line entry point for the e-ticket parser.
//
// Note about input formats
// ------------------------
// The parsers in this repo work on a "payload.Payload": a kind ("pdf" or "qr")
// plus the raw text. The extract command accepts JSONL where each line is one of:
//  1. Scanner envelope: {"id":"...","device":{...},"scan":{"text":"..."}}
//  2. Flat payload:     {"kind":"qr","text":"..."}
//  3. Anything else:    treated as the raw decoded QR string.
//
// The pdf and qr commands take a single input and can save the result to the
// configured wallet store with -save.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"eticket_parser/internal/config"
	"eticket_parser/internal/export"
	"eticket_parser/internal/extract"
	"eticket_parser/internal/logging"
	_ "eticket_parser/internal/parsers" // register all parsers via init()
	"eticket_parser/internal/payload"
	"eticket_parser/internal/pdftext"
	"eticket_parser/internal/registry"
	"eticket_parser/internal/storage"
	"eticket_parser/internal/ticket"
	"eticket_parser/internal/wallet"
)

type ExtractOut struct {
	Payload *payload.Payload `json:"payload"`
	Results []any            `json:"results,omitempty"`
}

type Stats struct {
	Lines   int
	Scan    int
	Flat    int
	Raw     int
	Emitted int
	Matched int
	Tickets int
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "eticket - commands:")
	fmt.Fprintln(w, "  pdf      - extract a ticket from a PDF file")
	fmt.Fprintln(w, "  qr       - extract tickets from a decoded QR string")
	fmt.Fprintln(w, "  extract  - parse JSONL payloads and output JSON")
	fmt.Fprintln(w, "  trace    - show which formats matched for a piece of text")
	fmt.Fprintln(w, "  list     - list saved tickets")
	fmt.Fprintln(w, "  delete   - delete a saved ticket by id")
	fmt.Fprintln(w, "  export   - write saved tickets to an XLSX file")
	fmt.Fprintln(w, "  parsers  - list registered parsers")
	fmt.Fprintln(w, "  stats    - summarise archived extraction attempts (ClickHouse)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  eticket pdf -input ticket.pdf [-save] [-pretty]")
	fmt.Fprintln(w, "  eticket qr [-text STRING] [-save] [-pretty]   (reads stdin without -text)")
	fmt.Fprintln(w, "  eticket extract -input payloads.jsonl [-output out.json] [-pretty] [-all] [-stats]")
	fmt.Fprintln(w, "  eticket trace -kind pdf|qr [-input file.txt]")
	fmt.Fprintln(w, "  eticket list [-pretty]")
	fmt.Fprintln(w, "  eticket delete -id ID")
	fmt.Fprintln(w, "  eticket export -output tickets.xlsx")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Storage and logging come from -config FILE or the environment (STORAGE_BACKEND, LOG_LEVEL, ...).")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	cmd := strings.ToLower(os.Args[1])
	args := os.Args[2:]
	switch cmd {
	case "pdf":
		err = runPDF(ctx, args)
	case "qr":
		err = runQR(ctx, args)
	case "extract":
		err = runExtract(args)
	case "trace":
		err = runTrace(args)
	case "list":
		err = runList(ctx, args)
	case "delete":
		err = runDelete(ctx, args)
	case "export":
		err = runExport(ctx, args)
	case "parsers":
		runParsers()
	case "stats":
		err = runStats(ctx, args)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, extract.ErrNoTicket) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

// env bundles what the commands that touch the wallet need.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend storage.Backend
	wallet  *wallet.Wallet
}

func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format), nil
}

func openEnv(ctx context.Context, configPath string) (*env, error) {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	backend, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	w := wallet.New(backend, logger)
	if err := w.Load(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, backend: backend, wallet: w}, nil
}

func (e *env) Close() {
	_ = e.backend.Close()
}

// newService builds an extraction service, archiving attempts to ClickHouse when enabled.
func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*extract.Service, func(), error) {
	if !cfg.Storage.Archive {
		return extract.NewService(logger), func() {}, nil
	}
	archive, err := storage.OpenClickHouse(ctx, cfg.Storage.ClickHouse)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse: %w", err)
	}
	return extract.NewService(logger, extract.WithArchive(archive)), func() { _ = archive.Close() }, nil
}

func runPDF(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pdf", flag.ExitOnError)
	inPath := fs.String("input", "", "Input PDF file")
	configPath := fs.String("config", "", "Config file (YAML)")
	save := fs.Bool("save", false, "Add the ticket to the wallet")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	_ = fs.Parse(args)

	if *inPath == "" && fs.NArg() > 0 {
		*inPath = fs.Arg(0)
	}
	if *inPath == "" {
		return errors.New("-input is required")
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	svc, closeArchive, err := newService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	t, err := svc.FromPDF(ctx, *inPath)
	if err != nil {
		return err
	}

	if *save {
		if err := saveTickets(ctx, *configPath, t); err != nil {
			return err
		}
	}
	return writeJSON(os.Stdout, t, *pretty)
}

func runQR(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("qr", flag.ExitOnError)
	text := fs.String("text", "", "Decoded QR string (default: stdin)")
	configPath := fs.String("config", "", "Config file (YAML)")
	save := fs.Bool("save", false, "Add the tickets to the wallet")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	_ = fs.Parse(args)

	input := *text
	if input == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		input = string(b)
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	svc, closeArchive, err := newService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	tickets, err := svc.FromQR(ctx, input)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		return fmt.Errorf("%w: no passengers in QR text", extract.ErrNoTicket)
	}

	if *save {
		if err := saveTickets(ctx, *configPath, tickets...); err != nil {
			return err
		}
	}
	return writeJSON(os.Stdout, tickets, *pretty)
}

func saveTickets(ctx context.Context, configPath string, tickets ...*ticket.Ticket) error {
	e, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.Close()
	return e.wallet.Add(ctx, tickets...)
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	inPath := fs.String("input", "", "Input JSONL file (default: stdin)")
	outPath := fs.String("output", "", "Output JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	includeAll := fs.Bool("all", false, "Include payloads even if no parser matched")
	showStats := fs.Bool("stats", false, "Print basic counters to stderr")
	_ = fs.Parse(args)

	// Ensure parsers priority ordering is stable.
	registry.Default().Sort()

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 16*1024*1024)

	out := make([]ExtractOut, 0, 64)
	st := &Stats{}

	for scanner.Scan() {
		st.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		p, form := payload.Decode([]byte(line))
		if p == nil {
			continue
		}
		switch form {
		case "scan":
			st.Scan++
		case "flat":
			st.Flat++
		case "raw":
			st.Raw++
		}

		results := registry.Default().Dispatch(p)
		if !*includeAll && len(results) == 0 {
			continue
		}
		rany := make([]any, 0, len(results))
		for _, res := range results {
			rany = append(rany, res) // keep concrete types for JSON marshal
			st.Tickets += len(res.Tickets())
		}
		out = append(out, ExtractOut{Payload: p, Results: rany})
		st.Emitted++
		if len(results) > 0 {
			st.Matched++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("input read error: %w", err)
	}

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		wout = f
	}
	if err := writeJSON(wout, out, *pretty); err != nil {
		return err
	}

	if *showStats {
		fmt.Fprintf(os.Stderr,
			"stats: lines=%d decoded(scan=%d flat=%d raw=%d) emitted=%d matched=%d tickets=%d\n",
			st.Lines, st.Scan, st.Flat, st.Raw, st.Emitted, st.Matched, st.Tickets,
		)
	}
	return nil
}

func runTrace(args []string) error {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	kind := fs.String("kind", "", "Payload kind: pdf or qr (default: every parser)")
	inPath := fs.String("input", "", "Text file, or a PDF when -kind pdf (default: stdin)")
	_ = fs.Parse(args)

	text, err := readTraceInput(*inPath, *kind)
	if err != nil {
		return err
	}

	p := &payload.Payload{Kind: *kind, Source: *inPath, Text: text}
	var traces []*registry.TraceResult
	for _, parser := range registry.Default().AllParsers() {
		if *kind != "" && !hasKind(parser.Kinds(), *kind) {
			continue
		}
		tp, ok := parser.(registry.Traceable)
		if !ok {
			continue
		}
		traces = append(traces, tp.ParseWithTrace(p))
	}
	return writeJSON(os.Stdout, traces, true)
}

func readTraceInput(path, kind string) (string, error) {
	if path == "" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	if kind == payload.KindPDF && strings.EqualFold(filepath.Ext(path), ".pdf") {
		return pdftext.ExtractFile(context.Background(), path)
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func hasKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (YAML)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	_ = fs.Parse(args)

	e, err := openEnv(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.Close()
	return writeJSON(os.Stdout, e.wallet.List(), *pretty)
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (YAML)")
	id := fs.String("id", "", "Ticket id")
	_ = fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}
	e, err := openEnv(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.Close()
	return e.wallet.Delete(ctx, *id)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (YAML)")
	outPath := fs.String("output", "tickets.xlsx", "Output XLSX file")
	_ = fs.Parse(args)

	e, err := openEnv(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := export.NewService(e.logger).TicketsXLSX(e.wallet.List())
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *outPath, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %d tickets to %s\n", e.wallet.Len(), *outPath)
	return nil
}

func runParsers() {
	reg := registry.Default()
	reg.Sort()
	parsers := reg.AllParsers()
	sort.SliceStable(parsers, func(i, j int) bool {
		return parsers[i].Priority() < parsers[j].Priority()
	})
	for _, p := range parsers {
		_, traceable := p.(registry.Traceable)
		fmt.Printf("%-12s priority=%-3d kinds=%s trace=%t\n",
			p.Name(), p.Priority(), strings.Join(p.Kinds(), ","), traceable)
	}
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (YAML)")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	archive, err := storage.OpenClickHouse(ctx, cfg.Storage.ClickHouse)
	if err != nil {
		return fmt.Errorf("clickhouse: %w", err)
	}
	defer archive.Close()

	stats, err := archive.Stats(ctx)
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, stats, true)
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("JSON encode error: %w", err)
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
