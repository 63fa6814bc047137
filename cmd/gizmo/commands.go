package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/meigma/gizmo"
	"github.com/meigma/gizmo/grp"
	gizmohttp "github.com/meigma/gizmo/http"
	"github.com/meigma/gizmo/internal/config"
	"github.com/meigma/gizmo/ne"
)

const configKey = "config"

var (
	outFlag = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "write bytes to this file instead of stdout",
	}
	spriteFlag = &cli.BoolFlag{
		Name:  "sprite",
		Usage: "decode the archive entry as a sprite and write a PNG",
	}
	maxBytesFlag = &cli.Int64Flag{
		Name:     "max-bytes",
		Usage:    "prune the store down to this many bytes",
		Required: true,
	}
)

var (
	listCommand = cli.Command{
		Name:      "list",
		Usage:     "List the resources of a container or the entries of an archive",
		ArgsUsage: "<file|url>",
		Action:    list,
	}
	extractCommand = cli.Command{
		Name:      "extract",
		Usage:     "Extract one resource or entry without the cache",
		ArgsUsage: "<file|url> <name|type:id> <out>",
		Action:    extract,
		Flags:     []cli.Flag{spriteFlag},
	}
	getCommand = cli.Command{
		Name:      "get",
		Usage:     "Fetch an asset through the cache",
		ArgsUsage: "<source:kind:number>",
		Action:    get,
		Flags:     []cli.Flag{outFlag},
	}
	preloadCommand = cli.Command{
		Name:      "preload",
		Usage:     "Load every indexed asset matching a glob",
		ArgsUsage: "<glob>",
		Action:    preload,
	}
	validateCommand = cli.Command{
		Name:   "validate",
		Usage:  "Check the cache index against the stored bytes",
		Action: validate,
	}
	statsCommand = cli.Command{
		Name:   "stats",
		Usage:  "Show cache statistics",
		Action: stats,
	}
	exportCommand = cli.Command{
		Name:      "export",
		Usage:     "Write cached assets to a zstd-compressed tar bundle",
		ArgsUsage: "<out.tar.zst> [glob]",
		Action:    export,
	}
	pruneCommand = cli.Command{
		Name:   "prune",
		Usage:  "Shrink the persistent store, oldest entries first",
		Action: prune,
		Flags:  []cli.Flag{maxBytesFlag},
	}
)

func loadedConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, ok := ctx.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, errors.New("config not loaded")
	}
	return cfg, nil
}

func openCache(ctx *cli.Context) (*gizmo.AssetCache, error) {
	cfg, err := loadedConfig(ctx)
	if err != nil {
		return nil, err
	}
	return gizmo.New(cfg.CacheDir,
		gizmo.WithSearchDirs(cfg.SearchDirs...),
		gizmo.WithLogger(log.StandardLogger()),
		gizmo.WithPreloadConcurrency(cfg.PreloadConcurrency),
	)
}

func isArchive(path string) bool {
	path, _, _ = strings.Cut(path, "?")
	return strings.EqualFold(filepath.Ext(path), ".grp")
}

// openContainer opens a local container or, for http(s) URLs, reads it
// through range requests.
func openContainer(ctx *cli.Context, path string) (*ne.File, error) {
	logger := log.StandardLogger()
	if !gizmohttp.IsURL(path) {
		return ne.Open(path, ne.WithLogger(logger))
	}
	src, err := gizmohttp.NewSource(ctx.Context, path, gizmohttp.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return ne.New(src, ne.WithLogger(logger))
}

func openArchive(ctx *cli.Context, path string) (*grp.Archive, error) {
	logger := log.StandardLogger()
	if !gizmohttp.IsURL(path) {
		return grp.Open(path, grp.WithLogger(logger))
	}
	src, err := gizmohttp.NewSource(ctx.Context, path, gizmohttp.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return grp.New(src, grp.WithLogger(logger))
}

func list(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected 1 argument, got %d", ctx.NArg())
	}
	path := ctx.Args().First()
	w := ctx.App.Writer

	if isArchive(path) {
		a, err := openArchive(ctx, path)
		if err != nil {
			return err
		}
		defer a.Close()
		for _, e := range a.Entries() {
			fmt.Fprintf(w, "%-13s %10d %10d %s\n", e.Name, e.Size, e.StoredSize(), e.Compression())
		}
		return nil
	}

	f, err := openContainer(ctx, path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, r := range f.Resources() {
		fmt.Fprintf(w, "%-14s %5d %#08x %8d\n", r.TypeName, r.Number(), r.Offset, r.Length)
	}
	return nil
}

func extract(ctx *cli.Context) error {
	if ctx.NArg() != 3 {
		return fmt.Errorf("expected 3 arguments, got %d", ctx.NArg())
	}
	path, target, out := ctx.Args().Get(0), ctx.Args().Get(1), ctx.Args().Get(2)

	if isArchive(path) {
		return extractEntry(ctx, path, target, out)
	}
	return extractResource(ctx, path, target, out)
}

func extractEntry(ctx *cli.Context, path, name, out string) error {
	a, err := openArchive(ctx, path)
	if err != nil {
		return err
	}
	defer a.Close()

	if !ctx.Bool(spriteFlag.Name) {
		data, err := a.Extract(name)
		if err != nil {
			return err
		}
		return os.WriteFile(out, data, 0o644) //nolint:gosec // user-requested output file
	}

	s, err := a.ExtractSprite(name)
	if err != nil {
		return err
	}
	f, err := os.Create(out) //nolint:gosec // user-requested output file
	if err != nil {
		return err
	}
	if err := png.Encode(f, s.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func extractResource(ctx *cli.Context, path, target, out string) error {
	typeName, idStr, ok := strings.Cut(target, ":")
	if !ok {
		return fmt.Errorf("resource must be type:id, got %q", target)
	}
	typeID, ok := ne.ParseType(typeName)
	if !ok {
		return fmt.Errorf("unknown resource type %q", typeName)
	}
	id, err := strconv.ParseUint(idStr, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid resource id %q: %w", idStr, err)
	}

	f, err := openContainer(ctx, path)
	if err != nil {
		return err
	}
	defer f.Close()

	if typeID == ne.TypeBitmap {
		return f.WriteBitmap(uint16(id), out)
	}
	data, err := f.Extract(typeID, uint16(id))
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644) //nolint:gosec // user-requested output file
}

func get(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected 1 argument, got %d", ctx.NArg())
	}
	c, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	h, err := c.Get(ctx.Args().First())
	if err != nil {
		return err
	}
	defer c.ReleaseID(h.ID())

	if out := ctx.String(outFlag.Name); out != "" {
		return os.WriteFile(out, h.Bytes(), 0o644) //nolint:gosec // user-requested output file
	}
	_, err = ctx.App.Writer.Write(h.Bytes())
	return err
}

func preload(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected 1 argument, got %d", ctx.NArg())
	}
	c, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	loaded, err := c.Preload(ctx.Context, ctx.Args().First())
	if perr := printJSON(ctx, map[string]any{"loaded": loaded}); perr != nil {
		return perr
	}
	return err
}

func validate(ctx *cli.Context) error {
	c, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.ValidateCache()
	if err != nil {
		return err
	}
	if err := printJSON(ctx, map[string]any{
		"checked": report.Checked,
		"missing": idStrings(report.Missing),
		"stale":   idStrings(report.Stale),
	}); err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%d missing, %d stale", len(report.Missing), len(report.Stale))
	}
	return nil
}

func stats(ctx *cli.Context) error {
	c, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	resp := map[string]any{"cache": c.Stats()}
	if size, ok, err := c.StoreSize(); err != nil {
		return err
	} else if ok {
		resp["store_bytes"] = size
	}
	return printJSON(ctx, resp)
}

func export(ctx *cli.Context) error {
	if ctx.NArg() < 1 || ctx.NArg() > 2 {
		return fmt.Errorf("expected 1 or 2 arguments, got %d", ctx.NArg())
	}
	pattern := "*"
	if ctx.NArg() == 2 {
		pattern = ctx.Args().Get(1)
	}
	c, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	f, err := os.Create(ctx.Args().First()) //nolint:gosec // user-requested output file
	if err != nil {
		return err
	}
	n, err := c.Export(f, pattern)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if perr := printJSON(ctx, map[string]any{"exported": n}); perr != nil {
		return perr
	}
	return err
}

func prune(ctx *cli.Context) error {
	c, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	freed, err := c.Prune(ctx.Int64(maxBytesFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(ctx, map[string]any{"freed": freed})
}

func idStrings(ids []gizmo.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func printJSON(ctx *cli.Context, resp any) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, string(jsonBytes))
	return nil
}
