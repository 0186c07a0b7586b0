package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/hdtree/hdtree/hdkey"
	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	formatLine  = "line"
	formatTable = "table"
)

// keyRow is a derived key as it is shown to the user. Private key bytes are
// only set when they were asked for.
type keyRow struct {
	path        hdkey.Path
	fingerprint uint32
	parentFP    uint32
	pubKey      []byte
	chainCode   []byte
	privKey     []byte
}

// newKeyRow collects the printable parts of key.
func newKeyRow(path hdkey.Path, key *hdkey.ExtendedPrivateKey,
	private bool) (keyRow, error) {

	xpub, err := key.Neuter()
	if err != nil {
		return keyRow{}, err
	}

	row := keyRow{
		path:        path,
		fingerprint: key.Fingerprint(),
		parentFP:    key.ParentFingerprint(),
		pubKey:      xpub.PubKeyBytes(),
		chainCode:   key.ChainCode(),
	}
	if private {
		row.privKey = key.Key()
	}

	return row, nil
}

// wipe clears the private key bytes of the row.
func (r *keyRow) wipe() {
	clear(r.privKey)
}

// writeRows renders rows to out in the given format.
func writeRows(out io.Writer, format string, rows []keyRow) error {
	switch format {
	case formatLine:
		return writeLines(out, rows)

	case formatTable:
		return writeTable(out, rows)

	default:
		return fmt.Errorf("unknown output format: %v", format)
	}
}

// writeLines writes one line of key=value fields per row.
func writeLines(out io.Writer, rows []keyRow) error {
	for _, row := range rows {
		fields := []string{
			row.path.String(),
			fmt.Sprintf("fingerprint=%08x", row.fingerprint),
			fmt.Sprintf("parent=%08x", row.parentFP),
			"pub=" + hex.EncodeToString(row.pubKey),
			"chaincode=" + hex.EncodeToString(row.chainCode),
		}
		if row.privKey != nil {
			fields = append(
				fields, "priv="+hex.EncodeToString(row.privKey),
			)
		}

		_, err := fmt.Fprintln(out, strings.Join(fields, " "))
		if err != nil {
			return err
		}
	}

	return nil
}

// writeTable renders the rows as a single table.
func writeTable(out io.Writer, rows []keyRow) error {
	withPriv := len(rows) > 0 && rows[0].privKey != nil

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	header := table.Row{
		"Path", "Fingerprint", "Parent", "Public Key", "Chain Code",
	}
	if withPriv {
		header = append(header, "Private Key")
	}
	t.AppendHeader(header)

	for _, row := range rows {
		r := table.Row{
			row.path.String(),
			fmt.Sprintf("%08x", row.fingerprint),
			fmt.Sprintf("%08x", row.parentFP),
			hex.EncodeToString(row.pubKey),
			hex.EncodeToString(row.chainCode),
		}
		if withPriv {
			r = append(r, hex.EncodeToString(row.privKey))
		}
		t.AppendRow(r)
	}

	_, err := fmt.Fprintln(out, t.Render())

	return err
}
