package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/pkg/models"
	"github.com/spf13/cobra"
)

// notesCmd groups the project note commands.
var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Read, edit and push a project's notes",
}

var notesShowCmd = &cobra.Command{
	Use:   "show <project> [sector]",
	Short: "Print a project's note, or one sector of it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		note, err := client.FetchNote(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(args) == 2 {
			sector, ok := note.Sector(args[1])
			if !ok {
				return fmt.Errorf("sector %q not found in notes of %s", args[1], args[0])
			}
			fmt.Fprintln(out, sector.Content)
			return nil
		}

		writeNote(out, note)
		return nil
	},
}

var notesSetCmd = &cobra.Command{
	Use:   "set <project> <sector>",
	Short: "Replace the content of one sector",
	Long: `Replace the content of a note sector, creating the sector when the note
has none with that name. The other sectors are saved unchanged.

Content comes from --content, or from --file ("-" reads stdin).

Examples:
  boardsync notes set my-project 일정 --content "Beta on the 3rd"
  boardsync notes set my-project 개요 --file overview.md`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, name := args[0], args[1]

		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("sector name must not be empty")
		}

		content, err := noteContent(cmd)
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		note, err := client.FetchNote(cmd.Context(), projectID)
		if err != nil {
			return err
		}

		saved, err := client.SaveNote(cmd.Context(), projectID, note.WithSector(name, content))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved sector %q, %d sectors in notes of %s\n", name, len(saved.Sectors), projectID)
		return nil
	},
}

var notesPushCmd = &cobra.Command{
	Use:   "push <project>",
	Short: "Write note sectors as files into the project directory",
	Long: `Write each note sector to notes-<sector>.md in the project's directory.
Without --sector every sector is pushed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sectors, err := cmd.Flags().GetStringArray("sector")
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		result, err := client.PushNote(cmd.Context(), args[0], sectors)
		if err != nil {
			return err
		}

		logging.Info("pushed notes", "project_id", args[0], "files", len(result.PushedFiles))

		out := cmd.OutOrStdout()
		for _, path := range result.PushedFiles {
			fmt.Fprintln(out, path)
		}
		fmt.Fprintf(out, "Pushed %d files to %s\n", len(result.PushedFiles), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(notesShowCmd)
	notesCmd.AddCommand(notesSetCmd)
	notesCmd.AddCommand(notesPushCmd)

	notesSetCmd.Flags().String("content", "", "Sector content")
	notesSetCmd.Flags().String("file", "", `Read sector content from a file ("-" for stdin)`)
	notesSetCmd.MarkFlagsMutuallyExclusive("content", "file")
	notesSetCmd.MarkFlagsOneRequired("content", "file")

	notesPushCmd.Flags().StringArray("sector", nil, "Sector to push (repeatable, default all)")
}

// noteContent reads the new sector content from --content or --file.
func noteContent(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("content") {
		return cmd.Flags().GetString("content")
	}

	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return "", err
	}

	var data []byte
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read note content: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func writeNote(w io.Writer, note *models.ProjectNote) {
	for i, sector := range note.Sectors {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "## %s\n", sector.Name)
		if sector.Content != "" {
			fmt.Fprintln(w, sector.Content)
		}
	}
}
