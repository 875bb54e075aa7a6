package command

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/stolasapp/medstore/internal/config"
	"github.com/stolasapp/medstore/internal/storage"
	"github.com/stolasapp/medstore/internal/storage/db"
)

type configKey struct{}

// prompt reads a line from stdin. The prompt is only shown, and the input only
// masked, when stdin is a terminal.
func prompt(prompt string, mask bool) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}
	if _, err := os.Stderr.WriteString(prompt); err != nil {
		return nil, err
	}
	if !mask {
		return readLine(os.Stdin)
	}
	defer func() { _, _ = os.Stderr.WriteString("\n") }()
	return term.ReadPassword(fd)
}

// readLine reads one line from r a byte at a time, so nothing past the newline
// is consumed. Carriage returns are dropped and backspaces remove the previous
// byte. Input that ends without a newline is returned as is, so an empty
// stream yields an empty line.
func readLine(r io.Reader) ([]byte, error) {
	var (
		buf  [1]byte
		line []byte
	)
	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			switch buf[0] {
			case '\n':
				return line, nil
			case '\r':
			case '\b':
				line = line[:max(len(line)-1, 0)]
			default:
				line = append(line, buf[0])
			}
			continue
		}
		switch {
		case errors.Is(err, io.EOF):
			return line, nil
		case err != nil:
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
	}
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-dev"
	}
	return buildVersion(info)
}

// buildVersion prefers the module version and falls back to the VCS revision,
// suffixed with -dev for a modified checkout.
func buildVersion(info *debug.BuildInfo) string {
	if ver := info.Main.Version; ver != "" && ver != "(devel)" {
		return ver
	}
	settings := make(map[string]string, len(info.Settings))
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	ver := cmp.Or(settings["vcs.revision"], "unknown")
	if settings["vcs.modified"] == "true" {
		ver += "-dev"
	}
	return ver
}

func loadConfig(ctx context.Context) (*config.Config, *slog.Logger, storage.Store, error) {
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok {
		return nil, nil, nil, errors.New("config file resolution failed")
	}
	return cfg, slog.Default(), storage.NewDB(cfg), nil
}

// writeRow prints row as a YAML mapping, keeping column order.
func writeRow(out io.Writer, row db.Row) error {
	node := &yaml.Node{Kind: yaml.MappingNode}
	values := row.Values()
	for i, col := range row.Columns() {
		var val yaml.Node
		if err := val.Encode(displayValue(values[i])); err != nil {
			return fmt.Errorf("failed to encode column %s: %w", col, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: col},
			&val,
		)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{node}}

	enc := yaml.NewEncoder(out)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return enc.Close()
}

// writeRows prints rows as a stream of YAML documents separated by "---".
func writeRows(out io.Writer, rows []db.Row) error {
	for i, row := range rows {
		if i > 0 {
			if _, err := fmt.Fprintln(out, "---"); err != nil {
				return err
			}
		}
		if err := writeRow(out, row); err != nil {
			return err
		}
	}
	return nil
}

// displayValue renders BLOB columns as text so they stay readable.
func displayValue(val any) any {
	if blob, ok := val.([]byte); ok {
		return string(blob)
	}
	return val
}
