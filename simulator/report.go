package simulator

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// LatencySummary holds percentiles of a latency sample.
type LatencySummary struct {
	Count int
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

func summarize(samples []time.Duration) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return LatencySummary{
		Count: len(sorted),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		Max:   sorted[len(sorted)-1],
	}
}

// percentile uses nearest rank on an ascending sample.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(p*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// PrintReport writes the end-of-run summary as two tables.
func PrintReport(w io.Writer, m SimulationMetrics) {
	title := color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf(" Simulation finished after %s ", m.Duration.Round(time.Second)))
	fmt.Fprintln(w, title)

	counters := newTable(w, []string{"Metric", "Value"})
	counters.AppendBulk([][]string{
		{"Users (active/total)", fmt.Sprintf("%d/%d", m.ActiveUsers, m.TotalUsers)},
		{"Rooms created", strconv.Itoa(m.RoomsCreated)},
		{"HTTP requests (failed)", fmt.Sprintf("%d (%d)", m.TotalRequests, m.FailedRequests)},
		{"Messages sent", strconv.Itoa(m.MessagesSent)},
		{"Messages echoed", strconv.Itoa(m.MessagesEchoed)},
		{"Notifications", strconv.Itoa(m.Notifications)},
		{"Delivery updates", strconv.Itoa(m.StatusUpdates)},
		{"Read receipts", strconv.Itoa(m.ReadReceipts)},
		{"Typing events", strconv.Itoa(m.TypingEvents)},
		{"Presence events", strconv.Itoa(m.PresenceEvents)},
		{"Reconnects", strconv.Itoa(m.Reconnects)},
		{"Error frames", errorCell(m.ErrorFrames)},
	})
	counters.Render()
	fmt.Fprintln(w)

	latencies := newTable(w, []string{"Latency", "Count", "P50", "P95", "P99", "Max"})
	for _, row := range []struct {
		name    string
		samples []time.Duration
	}{
		{"HTTP request", m.RequestLatencies},
		{"Send to echo", m.EchoLatencies},
	} {
		sum := summarize(row.samples)
		latencies.Append([]string{
			row.name,
			strconv.Itoa(sum.Count),
			sum.P50.String(),
			sum.P95.String(),
			sum.P99.String(),
			sum.Max.String(),
		})
	}
	latencies.Render()
}

func errorCell(n int) string {
	if n == 0 {
		return "0"
	}
	return color.New(color.FgRed, color.OpBold).Render(strconv.Itoa(n))
}
