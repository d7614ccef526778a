package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/stockline/backoffice/internal/catalog"
	"github.com/stockline/backoffice/internal/reconcile"
	"github.com/stockline/backoffice/internal/uploads"
)

// ExitRowsFailed is returned by process when the run finished but some rows
// could not be written.
const ExitRowsFailed = 10

// UploadService registers and lists uploads.
type UploadService interface {
	Register(ctx context.Context, req uploads.RegisterRequest) (uploads.Upload, error)
	ListRecent(ctx context.Context, shopID *uuid.UUID, limit int) ([]uploads.Upload, error)
}

// UploadRunner reconciles one upload under its shop lock.
type UploadRunner interface {
	Run(ctx context.Context, uploadID uuid.UUID) (uploads.Upload, error)
}

// ShopLister names shops in listings.
type ShopLister interface {
	ListShops(ctx context.Context) ([]catalog.Shop, error)
}

// UploadsCLI offers operator commands around stock uploads.
type UploadsCLI struct {
	uploads UploadService
	runner  UploadRunner
	shops   ShopLister
}

// NewUploadsCLI constructs the helper. runner may be nil when process is not used.
func NewUploadsCLI(service UploadService, runner UploadRunner) (*UploadsCLI, error) {
	if service == nil {
		return nil, errors.New("uploads cli: service required")
	}
	return &UploadsCLI{uploads: service, runner: runner}, nil
}

// UseShops makes list print shop names instead of ids.
func (c *UploadsCLI) UseShops(shops ShopLister) {
	c.shops = shops
}

// Output selects where and how a command prints.
type Output struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *Output) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

func (o Output) fail(cmd string, format string, args ...any) int {
	_, _ = fmt.Fprintf(o.Stderr, cmd+": "+format+"\n", args...)
	return 1
}

// RegisterOptions defines the flags of the register command.
type RegisterOptions struct {
	File string
	Shop string
	Output
}

// RegisterCommand stores a workbook and queues it for reconciliation.
func (c *UploadsCLI) RegisterCommand(ctx context.Context, opts RegisterOptions) int {
	opts.defaults()
	if strings.TrimSpace(opts.File) == "" {
		return opts.fail("register", "--file is required")
	}
	shopID, err := parseShop(opts.Shop)
	if err != nil {
		return opts.fail("register", "%v", err)
	}
	f, err := os.Open(opts.File)
	if err != nil {
		return opts.fail("register", "%v", err)
	}
	defer f.Close()

	upload, err := c.uploads.Register(ctx, uploads.RegisterRequest{
		ShopID:   shopID,
		FileName: filepath.Base(opts.File),
		Content:  f,
	})
	if err != nil {
		return opts.fail("register", "%v", err)
	}
	if opts.JSONOutput {
		return encode(opts.Output, "register", upload)
	}
	_, _ = fmt.Fprintf(opts.Stdout, "registered upload %s (%s, %d bytes) status=%s\n",
		upload.ID, upload.FileName, upload.SizeBytes, upload.Status)
	return 0
}

// ProcessOptions defines the flags of the process command.
type ProcessOptions struct {
	Upload string
	Output
}

// ProcessCommand reconciles an upload synchronously and prints its summary.
func (c *UploadsCLI) ProcessCommand(ctx context.Context, opts ProcessOptions) int {
	opts.defaults()
	if c.runner == nil {
		return opts.fail("process", "runner not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(opts.Upload))
	if err != nil {
		return opts.fail("process", "--upload must be a uuid: %v", err)
	}
	upload, err := c.runner.Run(ctx, id)
	if err != nil {
		return opts.fail("process", "%v", err)
	}
	if opts.JSONOutput {
		if code := encode(opts.Output, "process", upload); code != 0 {
			return code
		}
	} else {
		renderSummary(opts.Stdout, upload)
	}
	if upload.Summary != nil && upload.Summary.Failed > 0 {
		return ExitRowsFailed
	}
	return 0
}

// ListOptions defines the flags of the list command.
type ListOptions struct {
	Shop  string
	Limit int
	Output
}

// ListCommand prints the most recent uploads.
func (c *UploadsCLI) ListCommand(ctx context.Context, opts ListOptions) int {
	opts.defaults()
	shopID, err := parseShop(opts.Shop)
	if err != nil {
		return opts.fail("list", "%v", err)
	}
	list, err := c.uploads.ListRecent(ctx, shopID, opts.Limit)
	if err != nil {
		return opts.fail("list", "%v", err)
	}
	if opts.JSONOutput {
		return encode(opts.Output, "list", list)
	}
	names := c.shopNames(ctx, opts.Output)
	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSHOP\tFILE\tSTATUS\tCREATED")
	for _, u := range list {
		shop := "-"
		if u.ShopID != nil {
			shop = u.ShopID.String()
			if name, ok := names[*u.ShopID]; ok {
				shop = name
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, shop, u.FileName, u.Status, u.CreatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
	return 0
}

func (c *UploadsCLI) shopNames(ctx context.Context, out Output) map[uuid.UUID]string {
	if c.shops == nil {
		return nil
	}
	shops, err := c.shops.ListShops(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "list: shop names unavailable: %v\n", err)
		return nil
	}
	names := make(map[uuid.UUID]string, len(shops))
	for _, shop := range shops {
		names[shop.ID] = shop.DisplayName()
	}
	return names
}

func parseShop(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("--shop must be a uuid: %w", err)
	}
	return &id, nil
}

func encode(out Output, cmd string, v any) int {
	if err := json.NewEncoder(out.Stdout).Encode(v); err != nil {
		return out.fail(cmd, "encode json: %v", err)
	}
	return 0
}

func renderSummary(w io.Writer, upload uploads.Upload) {
	_, _ = fmt.Fprintf(w, "upload %s status=%s\n", upload.ID, upload.Status)
	if upload.ErrorMessage != "" {
		_, _ = fmt.Fprintf(w, "error: %s\n", upload.ErrorMessage)
	}
	res := upload.Summary
	if res == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "rows processed: %d\n", res.Processed)
	_, _ = fmt.Fprintf(w, "  upserted:     %d (created %d, updated %d)\n", res.Upserted, res.StockCreated, res.StockUpdated)
	_, _ = fmt.Fprintf(w, "  inapplicable: %d\n", res.SkippedInapplicable)
	_, _ = fmt.Fprintf(w, "  ambiguous:    %d\n", res.SkippedAmbiguous)
	_, _ = fmt.Fprintf(w, "  unmatched:    %d\n", res.SkippedUnmatched)
	_, _ = fmt.Fprintf(w, "  failed:       %d\n", res.Failed)
	for _, p := range res.CreatedProducts {
		_, _ = fmt.Fprintf(w, "created product %q (row %d)\n", p.Name, p.Row)
	}
	for _, issue := range res.Issues {
		renderIssue(w, issue)
	}
}

func renderIssue(w io.Writer, issue reconcile.RowIssue) {
	_, _ = fmt.Fprintf(w, "row %d [%s] %q: %s\n", issue.Row, issue.Kind, issue.Label, issue.Message)
}
