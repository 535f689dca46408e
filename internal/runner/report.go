// internal/runner/report.go
package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/broadcast"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage/models"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/task"
)

// OperationResult is the outcome of one operation in a run.
type OperationResult struct {
	Operation *task.Operation
	Result    *broadcast.TransactionResult
	Record    *models.TransactionRecord
	Status    string
	Err       error
	Duration  time.Duration
}

// Report collects the results of a run in operation order.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []OperationResult
}

// Count returns how many operations ended with status.
func (r *Report) Count(status string) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether any operation did not confirm.
func (r *Report) Failed() bool {
	return r.Count(models.StatusConfirmed) != len(r.Results)
}

var columns = []struct {
	title string
	width int
}{
	{"OPERATION", 20},
	{"TYPE", 9},
	{"STATUS", 10},
	{"TRIES", 6},
	{"FEE/CU", 10},
	{"CU", 8},
	{"SIGNATURE", 14},
}

// Render formats the report as a bordered table.
func (r *Report) Render(styles ReportStyles) string {
	var rows []string

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = styles.Header.Width(c.width).Render(c.title)
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for _, res := range r.Results {
		values := r.row(res)
		cells := make([]string, len(columns))
		for i, c := range columns {
			st := styles.Cell
			if i == 2 {
				if s, ok := styles.Status[res.Status]; ok {
					st = s
				}
			}
			cells[i] = st.Width(c.width).Render(truncate(values[i], c.width-1))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		if res.Err != nil {
			rows = append(rows, styles.Muted.Render("  ↳ "+truncate(res.Err.Error(), 70)))
		}
	}

	summary := styles.Muted.Render(fmt.Sprintf("%d confirmed · %d fatal · %d exhausted · %d failed · %d cancelled · %s",
		r.Count(models.StatusConfirmed),
		r.Count(models.StatusFatal),
		r.Count(models.StatusExhausted),
		r.Count(models.StatusFailed),
		r.Count(models.StatusCancelled),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)))

	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Broadcast report"),
		strings.Join(rows, "\n"),
		"",
		summary)
	return styles.Container.Render(body)
}

func (r *Report) row(res OperationResult) []string {
	name, txType := "", ""
	if res.Operation != nil {
		name, txType = res.Operation.Name, res.Operation.TxType()
	}
	tries, fee, units, sig := "-", "-", "-", "-"
	if rec := res.Record; rec != nil {
		if rec.Attempts > 0 {
			tries = fmt.Sprintf("%d", rec.Attempts)
		}
		if rec.PriorityFeePerCU > 0 {
			fee = fmt.Sprintf("%d", rec.PriorityFeePerCU)
		}
		if rec.ComputeUnits > 0 {
			units = fmt.Sprintf("%d", rec.ComputeUnits)
		}
		if rec.Signature.Valid {
			sig = shortSignature(rec.Signature.String)
		}
	}
	return []string{name, txType, res.Status, tries, fee, units, sig}
}

func shortSignature(sig string) string {
	if len(sig) <= 12 {
		return sig
	}
	return sig[:5] + "…" + sig[len(sig)-5:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
