package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/kirillkom/notepeel/internal/infrastructure/export/xlsx"
)

func newOCRCmd(opts *rootOptions) *cobra.Command {
	var xlsxOut string
	var copyText bool
	cmd := &cobra.Command{
		Use:   "ocr <image>",
		Short: "Recognize text in an image without storing it",
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

			result, text, err := app.Notebook.Recognize(cmd.Context(), filepath.Base(args[0]), mimeType, bytes.NewReader(data))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, text)

			if copyText {
				if err := clipboard.WriteAll(text); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not copy to clipboard: %v\n", err)
				} else {
					fmt.Fprintln(out, "Text copied to clipboard!")
				}
			}
			if xlsxOut != "" {
				f, err := os.Create(xlsxOut)
				if err != nil {
					return fmt.Errorf("create workbook: %w", err)
				}
				if err := xlsx.WriteRecognition(f, result); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close workbook: %w", err)
				}
				fmt.Fprintf(out, "Workbook written to %s\n", xlsxOut)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also write the result to an .xlsx workbook")
	cmd.Flags().BoolVar(&copyText, "copy", false, "copy the recognized text to the clipboard")
	return cmd
}
