package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
)

//nolint:gochecknoglobals // Shared terminal styles.
var (
	accent = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")

	labelStyle   = lipgloss.NewStyle().Foreground(dim)
	headerStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	sealedStyle  = lipgloss.NewStyle().Foreground(red).Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(green)
	epitaphStyle = lipgloss.NewStyle().Italic(true)
)

// pair is one "key: value" line.
type pair struct {
	key   string
	value string
}

// keyValues renders aligned "key:  value" lines.
func keyValues(pairs ...pair) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p.key))
	}

	var sb strings.Builder
	for _, p := range pairs {
		sb.WriteString("  " + labelStyle.Render(fmt.Sprintf("%-*s", width+1, p.key+":")) + " " + p.value + "\n")
	}

	return sb.String()
}

// renderTable renders rows with rounded borders.
func renderTable(headers []string, rows [][]string) string {
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}

			return cell
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String() + "\n"
}

func renderState(sealed bool) string {
	if sealed {
		return sealedStyle.Render("sealed")
	}

	return activeStyle.Render("active")
}

func renderTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.UTC().Format(time.RFC3339)
}

func renderVault(v *rpc.Vault) string {
	if v == nil {
		return ""
	}

	pairs := []pair{
		{key: "address", value: v.Address},
		{key: "state", value: renderState(v.Sealed)},
		{key: "owner", value: v.Owner},
		{key: "beneficiaries", value: strings.Join(v.Beneficiaries, ", ")},
		{key: "balance", value: v.Balance},
		{key: "unlock period", value: (time.Duration(v.UnlockPeriodSeconds) * time.Second).String()},
		{key: "last activity", value: renderTime(v.LastActivity)},
		{key: "unlock at", value: renderTime(v.UnlockAt)},
		{key: "eligible", value: strconv.FormatBool(v.Eligible)},
		{key: "created at", value: renderTime(v.CreatedAt)},
	}

	if v.Sealed {
		pairs = append(pairs, pair{key: "sealed at", value: renderTime(v.SealedAt)})
	}

	return headerStyle.Render("Vault") + "\n" + keyValues(pairs...)
}

func renderVaultList(vaults []*rpc.Vault) string {
	rows := make([][]string, 0, len(vaults))
	for _, v := range vaults {
		rows = append(rows, []string{
			v.Address,
			v.Owner,
			v.Balance,
			renderState(v.Sealed),
			renderTime(v.UnlockAt),
		})
	}

	return renderTable([]string{"ADDRESS", "OWNER", "BALANCE", "STATE", "UNLOCK AT"}, rows)
}

func renderRecords(records []*rpc.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatUint(r.Seq, 10),
			r.Kind,
			describeRecord(r),
			renderTime(r.CommittedAt),
			r.TxID,
		})
	}

	return renderTable([]string{"SEQ", "KIND", "DETAILS", "COMMITTED AT", "TX"}, rows)
}

// describeRecord summarises the event payload of a record.
func describeRecord(r *rpc.Record) string {
	var parts []string

	if r.From != "" {
		parts = append(parts, "from "+r.From)
	}

	if r.To != "" {
		parts = append(parts, "to "+r.To)
	}

	if r.Amount != "" {
		parts = append(parts, "amount "+r.Amount)
	}

	if r.UnlockPeriodSeconds > 0 {
		parts = append(parts, "period "+(time.Duration(r.UnlockPeriodSeconds)*time.Second).String())
	}

	if !r.Timestamp.IsZero() {
		parts = append(parts, "at "+renderTime(r.Timestamp))
	}

	if r.Message != "" {
		parts = append(parts, strconv.Quote(r.Message))
	}

	return strings.Join(parts, ", ")
}

func renderReceipt(receipt *rpc.ReceiptResponse) string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render("Committed") + " " + receipt.TxID + "\n")

	for _, r := range receipt.Records {
		if r.Kind == string(domain.EventGoodbyeWorld) {
			sb.WriteString("  " + epitaphStyle.Render(r.Message) + "\n")
			continue
		}

		fmt.Fprintf(&sb, "  #%d %s %s\n", r.Seq, r.Kind, describeRecord(r))
	}

	if receipt.Vault != nil {
		sb.WriteString(renderVault(receipt.Vault))
	}

	return sb.String()
}
