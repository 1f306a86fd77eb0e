package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/parlance/pkg/scrap"
)

// scrapCommand creates the scrap archive management command.
func (c *CLI) scrapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrap",
		Short: "Manage the soft-delete archives",
	}

	cmd.AddCommand(c.scrapListCommand())
	cmd.AddCommand(c.scrapClearCommand())
	cmd.AddCommand(c.scrapPathCommand())

	return cmd
}

// scrapListCommand creates the "scrap list" subcommand. Without arguments it
// lists the file keys holding archives; with a key it prints that archive's
// entries as a table.
func (c *CLI) scrapListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [file-key]",
		Short: "List archived deletions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.newScrapManager()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				keys, err := mgr.Keys(cmd.Context())
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					printInfo("No scrap archives")
					return nil
				}
				for _, k := range keys {
					fmt.Println(StyleValue.Render(k))
				}
				return nil
			}

			entries, err := mgr.Entries(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				printInfo("Archive %s is empty", args[0])
				return nil
			}
			printEntryTable(entries)
			return nil
		},
	}
}

// scrapClearCommand creates the "scrap clear" subcommand.
func (c *CLI) scrapClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <file-key>",
		Short: "Drop a file's whole archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.newScrapManager()
			if err != nil {
				return err
			}
			if err := mgr.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess("Cleared archive %s", args[0])
			return nil
		},
	}
}

// scrapPathCommand creates the "scrap path" subcommand.
func (c *CLI) scrapPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the archive directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.scrapDir()
			if err != nil {
				return fmt.Errorf("get scrap dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

// printEntryTable renders archive entries grouped visually by batch, with
// the tree shape indicated through nesting indentation.
func printEntryTable(entries []scrap.Entry) {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		label := strings.Repeat("  ", e.NestingLevel) + firstLine(e.Node)
		root := ""
		if e.IsBatchRoot {
			root = "*"
		}
		rows = append(rows, []string{
			shortID(e.BatchID) + root,
			e.Node.Kind,
			label,
			e.Operation,
			strconv.Itoa(e.ChildCount),
			formatAge(e.DeletedAt),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Batch", "Kind", "Text", "Op", "Children", "Deleted").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			switch col {
			case 0, 3, 5:
				return StyleDim
			case 1:
				return StyleHighlight
			default:
				return StyleValue
			}
		})
	fmt.Println(t)
}

// firstLine returns a short preview of a snapshot's text, preferring English.
func firstLine(n scrap.NodeSnapshot) string {
	text := n.Text["en"]
	if text == "" {
		for _, v := range n.Text {
			text = v
			break
		}
	}
	if text == "" {
		return "—"
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	const max = 40
	if len(text) > max {
		return text[:max-1] + "…"
	}
	return text
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
