package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gazruxenginering/doclocker/internal/access"
	"github.com/gazruxenginering/doclocker/internal/browse"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// partialFilePermissions matches a regular downloaded file (owner rw, group/other r).
const partialFilePermissions = 0o644

func newRootsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "List the configured roots with their mirrored entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withFacade(cmd, func(f *browse.Facade) error {
				roots, err := f.Roots(cmd.Context())
				if err != nil {
					return err
				}

				return printRoots(cmd.OutOrStdout(), roots, mustCLIContext(cmd.Context()).Flags.JSON)
			})
		},
	}
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <folder-id>",
		Short: "List a mirrored folder, directories first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFacade(cmd, func(f *browse.Facade) error {
				view, err := f.Folder(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return printFolder(cmd.OutOrStdout(), view, mustCLIContext(cmd.Context()).Flags.JSON)
			})
		},
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <file-id>",
		Short: "Show a mirrored file and the folders beside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFacade(cmd, func(f *browse.Facade) error {
				view, err := f.File(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return printFile(cmd.OutOrStdout(), view, mustCLIContext(cmd.Context()).Flags.JSON)
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find mirrored entries by name",
		Long: fmt.Sprintf(`Case-insensitive substring search over every mirrored name. Queries
shorter than %d characters return nothing; at most %d results are shown.`,
			browse.MinQueryLength, browse.SearchLimit),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, strings.Join(args, " "), false)
		},
	}
}

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <prefix>",
		Short: "Suggest names for a partial query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, strings.Join(args, " "), true)
		},
	}
}

func runFind(cmd *cobra.Command, query string, autocomplete bool) error {
	return withFacade(cmd, func(f *browse.Facade) error {
		find := f.Search
		if autocomplete {
			find = f.Autocomplete
		}

		items, err := find(cmd.Context(), query)
		if err != nil {
			return err
		}

		return printItems(cmd.OutOrStdout(), items, mustCLIContext(cmd.Context()).Flags.JSON, true)
	})
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the files directly under each root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withFacade(cmd, func(f *browse.Facade) error {
				sections, err := f.Catalog(cmd.Context())
				if err != nil {
					return err
				}

				return printCatalog(cmd.OutOrStdout(), sections, mustCLIContext(cmd.Context()).Flags.JSON)
			})
		},
	}
}

func newGetCmd() *cobra.Command {
	var asSubject int64

	cmd := &cobra.Command{
		Use:   "get <file-id> [dest]",
		Short: "Download a mirrored file",
		Long: `Download a mirrored file from Drive. Only ids present in the mirror as files
can be downloaded. With --as, the participant must currently have document
access or the download is refused.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := ""
			if len(args) > 1 {
				dest = args[1]
			}

			return runGet(cmd, args[0], dest, asSubject)
		},
	}

	cmd.Flags().Int64Var(&asSubject, "as", 0, "participant id whose access gates the download")

	return cmd
}

func runGet(cmd *cobra.Command, id, dest string, asSubject int64) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	return withStore(ctx, cc, func(st *store.Store) error {
		if asSubject != 0 {
			if err := access.NewEvaluator(st, cc.Logger).Require(ctx, asSubject); err != nil {
				return err
			}
		}

		f, err := cc.newFacade(ctx, st, true)
		if err != nil {
			return err
		}

		dl, err := f.Open(ctx, id)
		if err != nil {
			return err
		}
		defer dl.Body.Close()

		if dest == "" {
			dest = localName(dl.File.Name, id)
		}

		n, err := writeDownload(dest, dl.Body)
		if err != nil {
			return err
		}

		cc.Logger.Debug("download complete", "id", id, "local_path", dest, "bytes", n)
		cc.Statusf("Downloaded %s (%s)\n", dest, formatSize(n))

		return nil
	})
}

// writeDownload copies body to dest via a .partial file renamed on success,
// so an interrupted download never leaves a truncated dest behind.
func writeDownload(dest string, body io.Reader) (int64, error) {
	partialPath := dest + ".partial"

	f, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, partialFilePermissions)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", partialPath, err)
	}

	n, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		os.Remove(partialPath)

		return n, fmt.Errorf("downloading to %s: %w", dest, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(partialPath)

		return n, fmt.Errorf("closing %s: %w", partialPath, err)
	}

	if err := os.Rename(partialPath, dest); err != nil {
		return n, fmt.Errorf("renaming download to %q: %w", dest, err)
	}

	return n, nil
}

// localName turns a Drive name into a safe file name in the current
// directory. Drive names may contain slashes.
func localName(name, fallback string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "/", "_"))
	if name == "" || name == "." || name == ".." {
		return fallback
	}

	return name
}

// withFacade opens the store and hands fn an offline facade over it.
func withFacade(cmd *cobra.Command, fn func(f *browse.Facade) error) error {
	cc := mustCLIContext(cmd.Context())

	return withStore(cmd.Context(), cc, func(st *store.Store) error {
		f, err := cc.newFacade(cmd.Context(), st, false)
		if err != nil {
			return err
		}

		return fn(f)
	})
}

// itemJSON is the JSON output schema for one mirrored entry.
type itemJSON struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Size         int64  `json:"size"`
	SizeText     string `json:"size_text"`
	ModifiedTime string `json:"modified_time,omitempty"`
	ParentID     string `json:"parent_id,omitempty"`
	RootKey      string `json:"root_key"`
	RootLabel    string `json:"root_label"`
	MediaType    string `json:"media_type,omitempty"`
}

func toItemJSON(it *browse.Item) itemJSON {
	return itemJSON{
		ID:           it.ID,
		Name:         it.Name,
		Kind:         string(it.Kind),
		Size:         it.Size,
		SizeText:     it.SizeText,
		ModifiedTime: it.ModifiedTime,
		ParentID:     it.ParentID,
		RootKey:      it.RootKey,
		RootLabel:    it.RootLabel,
		MediaType:    it.MediaType,
	}
}

func itemsJSON(items []browse.Item) []itemJSON {
	out := make([]itemJSON, 0, len(items))
	for i := range items {
		out = append(out, toItemJSON(&items[i]))
	}

	return out
}

func displayName(it *browse.Item) string {
	if it.IsDir() {
		return it.Name + "/"
	}

	return it.Name
}

func printItems(w io.Writer, items []browse.Item, asJSON, withRoot bool) error {
	if asJSON {
		return printJSON(w, itemsJSON(items))
	}

	if len(items) == 0 {
		fmt.Fprintln(w, "No matches.")
		return nil
	}

	headers := []string{"NAME", "SIZE", "ID"}
	if withRoot {
		headers = append(headers, "ROOT")
	}

	rows := make([][]string, 0, len(items))

	for i := range items {
		row := []string{displayName(&items[i]), items[i].SizeText, items[i].ID}
		if withRoot {
			row = append(row, items[i].RootLabel)
		}

		rows = append(rows, row)
	}

	printTable(w, headers, rows)

	return nil
}

type rootJSON struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func printRoots(w io.Writer, roots []browse.RootSummary, asJSON bool) error {
	if asJSON {
		out := make([]rootJSON, 0, len(roots))
		for _, r := range roots {
			out = append(out, rootJSON(r))
		}

		return printJSON(w, out)
	}

	rows := make([][]string, 0, len(roots))
	for _, r := range roots {
		rows = append(rows, []string{r.Label, fmt.Sprintf("%d", r.Count), r.ID})
	}

	printTable(w, []string{"ROOT", "ENTRIES", "ID"}, rows)

	return nil
}

type folderJSON struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	IsRoot bool       `json:"is_root"`
	Items  []itemJSON `json:"items"`
}

func printFolder(w io.Writer, view *browse.FolderView, asJSON bool) error {
	if asJSON {
		return printJSON(w, folderJSON{
			ID:     view.ID,
			Name:   view.Name,
			IsRoot: view.IsRoot,
			Items:  itemsJSON(view.Items),
		})
	}

	fmt.Fprintf(w, "%s (%d entries)\n", view.Name, len(view.Items))

	if len(view.Items) == 0 {
		return nil
	}

	return printItems(w, view.Items, false, false)
}

type fileJSON struct {
	itemJSON
	Siblings []siblingJSON `json:"siblings"`
}

type siblingJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func printFile(w io.Writer, view *browse.FileView, asJSON bool) error {
	if asJSON {
		out := fileJSON{itemJSON: toItemJSON(&view.Item), Siblings: make([]siblingJSON, 0, len(view.Siblings))}
		for i := range view.Siblings {
			out.Siblings = append(out.Siblings, siblingJSON{ID: view.Siblings[i].ID, Name: view.Siblings[i].Name})
		}

		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Name:     %s\n", view.Name)
	fmt.Fprintf(w, "Size:     %s\n", view.SizeText)
	fmt.Fprintf(w, "Root:     %s\n", view.RootLabel)
	fmt.Fprintf(w, "ID:       %s\n", view.ID)

	if view.ModifiedTime != "" {
		fmt.Fprintf(w, "Modified: %s\n", view.ModifiedTime)
	}

	if view.MediaType != "" {
		fmt.Fprintf(w, "MIME:     %s\n", view.MediaType)
	}

	if view.ParentID != "" {
		fmt.Fprintf(w, "Parent:   %s\n", view.ParentID)
	}

	for i := range view.Siblings {
		fmt.Fprintf(w, "  beside: %s/ (%s)\n", view.Siblings[i].Name, view.Siblings[i].ID)
	}

	return nil
}

type catalogJSON struct {
	Root  rootJSON   `json:"root"`
	Files []itemJSON `json:"files"`
}

func printCatalog(w io.Writer, sections []browse.CatalogSection, asJSON bool) error {
	if asJSON {
		out := make([]catalogJSON, 0, len(sections))
		for _, s := range sections {
			out = append(out, catalogJSON{Root: rootJSON(s.Root), Files: itemsJSON(s.Files)})
		}

		return printJSON(w, out)
	}

	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "%s (%d files)\n", s.Root.Label, len(s.Files))

		for j := range s.Files {
			fmt.Fprintf(w, "  %s  %s  %s\n", s.Files[j].Name, s.Files[j].SizeText, s.Files[j].ID)
		}
	}

	return nil
}
