package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			notes, err := app.Notebook.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notes yet")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tTITLE")
			for _, note := range notes {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", note.ID, note.Status, formatDate(note.CreatedAt), displayTitle(note))
			}
			return tw.Flush()
		},
	}
}

func newUploadCmd(opts *rootOptions) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "upload <image>",
		Short: "Upload a photo of a handwritten page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, mimeType, err := readImage(args[0])
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			detail, err := app.Notebook.Upload(cmd.Context(), filepath.Base(args[0]), mimeType, bytes.NewReader(data), title)
			if err != nil {
				if detail.ID != 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Uploaded note %d\n", detail.ID)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded note %d (%s)\n", detail.ID, detail.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "note title")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var copyText bool
	var saveImage bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a note's text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNoteID(args[0])
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			detail, err := app.Notebook.Open(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s (%s, %s)\n", displayTitle(detail.NoteSummary), detail.Status, formatDate(detail.CreatedAt))
			if detail.ErrorMessage != "" {
				fmt.Fprintf(out, "! %s\n", detail.ErrorMessage)
			}
			fmt.Fprintln(out, detail.DraftText)

			if copyText {
				if err := clipboard.WriteAll(detail.DraftText); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not copy to clipboard: %v\n", err)
				} else {
					fmt.Fprintln(out, "Text copied to clipboard!")
				}
			}
			if saveImage {
				path, err := app.Images.SaveNoteImage(cmd.Context(), detail)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Image written to %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyText, "copy", false, "copy the note text to the clipboard")
	cmd.Flags().BoolVar(&saveImage, "save-image", false, "write the note image to the image directory")
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	var text, file string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace a note's text and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNoteID(args[0])
			if err != nil {
				return err
			}
			draft, err := draftFrom(cmd, text, file)
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.Notebook.Open(cmd.Context(), id); err != nil {
				return err
			}
			state, err := app.Notebook.Edit(draft)
			if err != nil {
				return err
			}
			if state != domain.DetailDirty {
				fmt.Fprintf(cmd.OutOrStdout(), "Note %d unchanged\n", id)
				return nil
			}
			if _, err := app.Notebook.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved note %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "new note text")
	cmd.Flags().StringVar(&file, "file", "", "read the new text from a file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("text", "file")
	cmd.MarkFlagsOneRequired("text", "file")
	return cmd
}

func newRenameCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Change a note's title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNoteID(args[0])
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.Notebook.Open(cmd.Context(), id); err != nil {
				return err
			}
			detail, err := app.Notebook.Rename(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed note %d to %q\n", detail.ID, detail.Title)
			return nil
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNoteID(args[0])
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.Notebook.Refresh(cmd.Context()); err != nil {
				return err
			}
			if _, ok := app.Notebook.Collection().Get(id); !ok {
				return domain.WrapError(domain.ErrNotFound, "delete note", fmt.Errorf("note %d is not in your notes", id))
			}
			if err := app.Notebook.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %d\n", id)
			return nil
		},
	}
}

func newRerecognizeCmd(opts *rootOptions) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "rerecognize <id>",
		Short: "Run recognition on a note's image again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNoteID(args[0])
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.Notebook.Open(cmd.Context(), id); err != nil {
				return err
			}
			state, text, err := app.Notebook.Rerecognize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			if !save || state != domain.DetailDirty {
				return nil
			}
			if _, err := app.Notebook.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved note %d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "save the recognized text as the note text")
	return cmd
}

func parseNoteID(raw string) (domain.NoteID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse note id", fmt.Errorf("%q is not a note id", raw))
	}
	return domain.NoteID(id), nil
}

func draftFrom(cmd *cobra.Command, text, file string) (string, error) {
	switch file {
	case "":
		return text, nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(data), nil
	}
}

// readImage loads the file and names its MIME type by extension, sniffing the
// content when the extension is unknown.
func readImage(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "read image", errors.New("image file is empty"))
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return data, mimeType, nil
}

func displayTitle(note domain.NoteSummary) string {
	switch {
	case strings.TrimSpace(note.Title) != "":
		return note.Title
	case note.Filename != "":
		return note.Filename
	default:
		return "Untitled"
	}
}

func formatDate(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}
