// internal/engine/enrichment/aggregate.go
package enrichment

import (
	"sort"
	"strings"
	"time"

	"creator-match/internal/engine/geo"
	"creator-match/internal/models"
)

const (
	defaultTopTags = 10
	sampleTitles   = 5
)

// Aggregate folds raw activity into a window ending at now. Items outside
// the window are ignored. extraText is scanned for place names alongside
// the items (typically the channel description).
func Aggregate(items []models.ActivityItem, windowDays int, now time.Time, table *geo.Table, topTags int, extraText ...string) models.ActivityWindow {
	if topTags <= 0 {
		topTags = defaultTopTags
	}
	w := models.ActivityWindow{
		WindowDays: windowDays,
		ComputedAt: now.UTC(),
	}
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	var inWindow []models.ActivityItem
	for _, it := range items {
		if it.PublishedAt.Before(since) || it.PublishedAt.After(now) {
			continue
		}
		inWindow = append(inWindow, it)
	}
	w.ItemCount = len(inWindow)

	if len(inWindow) > 0 {
		var views float64
		var engagement float64
		rated := 0
		for _, it := range inWindow {
			views += float64(it.Views)
			if it.Views <= 0 {
				continue
			}
			e := float64(it.Reactions+it.Comments) / float64(it.Views)
			if e > 1 {
				e = 1
			}
			if e < 0 {
				e = 0
			}
			engagement += e
			rated++
		}
		w.AvgReach = views / float64(len(inWindow))
		if rated > 0 {
			w.AvgEngagement = engagement / float64(rated)
		}
		if windowDays > 0 {
			w.Cadence = float64(len(inWindow)) / (float64(windowDays) / 7)
		}
	}

	w.ContentTags = topContentTags(inWindow, topTags)
	w.SampleTitles = newestTitles(inWindow, sampleTitles)
	w.LocationMentions = mentions(inWindow, table, extraText)
	return w
}

func topContentTags(items []models.ActivityItem, k int) []string {
	counts := map[string]int{}
	var order []string
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(tag, "#")))
		if tag == "" {
			return
		}
		if _, ok := counts[tag]; !ok {
			order = append(order, tag)
		}
		counts[tag]++
	}
	for _, it := range items {
		for _, t := range it.Tags {
			add(t)
		}
		for _, field := range strings.Fields(it.Title + " " + it.Description) {
			if strings.HasPrefix(field, "#") {
				add(field)
			}
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > k {
		order = order[:k]
	}
	return order
}

func newestTitles(items []models.ActivityItem, k int) []string {
	sorted := make([]models.ActivityItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})
	var out []string
	for _, it := range sorted {
		if it.Title == "" {
			continue
		}
		out = append(out, it.Title)
		if len(out) == k {
			break
		}
	}
	return out
}

func mentions(items []models.ActivityItem, table *geo.Table, extra []string) []string {
	if table == nil {
		return nil
	}
	texts := append([]string{}, extra...)
	for _, it := range items {
		texts = append(texts, it.Title, it.Description, strings.Join(it.Tags, " "))
	}

	seen := map[string]bool{}
	var out []string
	for _, text := range texts {
		for _, p := range table.FindMentions(text) {
			s := p.String()
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
