package services

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"hostwatch/internal/models"
)

const topMessages = 5

// logLine matches "<source> YYYY-MM-DD HH:MM:SS - LEVEL: message". Source and
// level may be any Unicode word.
var logLine = regexp.MustCompile(`^([\p{L}\p{N}_]+)[\s\p{Z}]+(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})[\s\p{Z}]+-[\s\p{Z}]+([\p{L}\p{N}_]+):[\s\p{Z}]+(.+)`)

// AnalyzeLogs counts levels and the most common ERROR, WARNING and INFO
// messages. Lines that do not match the format are counted in TotalLogs only.
func AnalyzeLogs(content string, now time.Time) models.LogAnalysis {
	lines := strings.Split(strings.TrimSpace(content), "\n")

	levels := map[string]int{}
	byLevel := map[string]*messageCounter{
		"ERROR":   newMessageCounter(),
		"WARNING": newMessageCounter(),
		"INFO":    newMessageCounter(),
	}

	for _, line := range lines {
		m := logLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level := strings.ToUpper(m[3])
		levels[level]++
		if counter, ok := byLevel[level]; ok {
			counter.add(m[4])
		}
	}

	return models.LogAnalysis{
		LevelCounts:       levels,
		TotalLogs:         len(lines),
		TopErrors:         byLevel["ERROR"].top(topMessages),
		TopWarnings:       byLevel["WARNING"].top(topMessages),
		TopInfo:           byLevel["INFO"].top(topMessages),
		AnalysisTimestamp: now,
	}
}

// messageCounter counts messages and remembers first-seen order for ties
type messageCounter struct {
	counts map[string]int
	order  []string
}

func newMessageCounter() *messageCounter {
	return &messageCounter{counts: map[string]int{}}
}

func (c *messageCounter) add(msg string) {
	if _, seen := c.counts[msg]; !seen {
		c.order = append(c.order, msg)
	}
	c.counts[msg]++
}

func (c *messageCounter) top(n int) []models.MessageCount {
	out := make([]models.MessageCount, 0, len(c.order))
	for _, msg := range c.order {
		out = append(out, models.MessageCount{Message: msg, Count: c.counts[msg]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
