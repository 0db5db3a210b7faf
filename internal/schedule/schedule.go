// Package schedule looks up the published outage schedule for a region and
// formats the two-day Ukrainian summary text. Hour N of the published data
// spans (N-1):30 to N:30 local time; the day closes at 24:00.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ivan200424/graphenko/internal/kyivtime"
)

// maxResponseBytes prevents unbounded reads of region data files.
const maxResponseBytes = 10 << 20 // 10 MiB

var weekdaysUK = [...]string{
	"Понеділок", "Вівторок", "Середа", "Четвер", "П'ятниця", "Субота", "Неділя",
}

// Data is the published region file. Day keys are the unix timestamp of
// local midnight; group keys carry a "GPV" prefix; hour keys run "1".."24"
// with values yes, no, or maybe.
type Data struct {
	Fact struct {
		Data map[string]map[string]map[string]string `json:"data"`
	} `json:"fact"`
}

// Client fetches region schedule files.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a schedule client over the given data base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch retrieves and decodes the schedule file for one region.
func (c *Client) Fetch(ctx context.Context, region string) (*Data, error) {
	url := c.baseURL + region + ".json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("schedule: create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("schedule: fetch %s: %w", region, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schedule: fetch %s: unexpected status %d", region, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("schedule: read %s: %w", region, err)
	}
	var data Data
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("schedule: decode %s: %w", region, err)
	}
	return &data, nil
}

// Period is one outage window in schedule hours, start inclusive and end
// exclusive, both in 1..25.
type Period struct {
	Start int
	End   int
}

// String renders the window with its local clock bounds and duration,
// for example "03:30 - 20:30 (~17 год)".
func (p Period) String() string {
	start := fmt.Sprintf("%02d:30", p.Start-1)
	end := fmt.Sprintf("%02d:30", p.End-1)
	if p.End == 25 {
		end = "24:00"
	}
	return fmt.Sprintf("%s - %s (~%d год)", start, end, p.End-p.Start)
}

// Periods folds the per-hour statuses of one day into outage windows.
// Both "no" and "maybe" hours count as outages; a run that reaches the
// last hour closes at 25 (24:00). Missing hours count as powered.
func Periods(data *Data, group string, day time.Time) []Period {
	if data == nil {
		return nil
	}
	hours, ok := data.Fact.Data[dayKey(day)]["GPV"+group]
	if !ok {
		return nil
	}

	var periods []Period
	start := 0
	for hour := 1; hour <= 24; hour++ {
		status := hours[strconv.Itoa(hour)]
		outage := status == "no" || status == "maybe"

		switch {
		case outage && start == 0:
			start = hour
		case !outage && start != 0:
			periods = append(periods, Period{Start: start, End: hour})
			start = 0
		}
	}
	if start != 0 {
		periods = append(periods, Period{Start: start, End: 25})
	}
	return periods
}

// dayKey is the unix timestamp of the day's Kyiv-local midnight, as the
// published files key their days.
func dayKey(day time.Time) string {
	local := kyivtime.In(day)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return strconv.FormatInt(midnight.Unix(), 10)
}

// FormatText builds the two-day Ukrainian schedule summary for one group.
// The tomorrow section appears only when tomorrow's data is published.
func FormatText(data *Data, group string, now time.Time) string {
	if data == nil {
		return ""
	}
	today := kyivtime.In(now)
	tomorrow := today.AddDate(0, 0, 1)

	todayPeriods := Periods(data, group, today)
	tomorrowPeriods := Periods(data, group, tomorrow)

	var b strings.Builder
	fmt.Fprintf(&b, "💡Оновлено графік відключень на сьогодні, %s (%s), для черги %s:\n\n",
		today.Format("02.01.2006"), weekdayUK(today), group)
	if len(todayPeriods) == 0 {
		b.WriteString("✅ Відключень не заплановано\n")
	}
	for _, p := range todayPeriods {
		fmt.Fprintf(&b, "🪫 %s\n", p)
	}

	if len(tomorrowPeriods) > 0 {
		fmt.Fprintf(&b, "\n💡Оновлено графік відключень на завтра, %s (%s), для черги %s:\n\n",
			tomorrow.Format("02.01.2006"), weekdayUK(tomorrow), group)
		for _, p := range tomorrowPeriods {
			fmt.Fprintf(&b, "🪫 %s\n", p)
		}
	}
	return b.String()
}

// weekdayUK names the weekday in Ukrainian, week starting Monday.
func weekdayUK(t time.Time) string {
	return weekdaysUK[(int(t.Weekday())+6)%7]
}
