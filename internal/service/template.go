package service

import (
	"strconv"
	"strings"
	"time"

	"message-scheduler/internal/model"
)

// RenderTemplate substitutes the recognized placeholders into a message
// template. Matching is case-sensitive literal replacement; unrecognized
// placeholders are left verbatim. Time placeholders are rendered in UTC.
// {{job.runCount}} is the ordinal of the run about to happen.
func RenderTemplate(tmpl string, job *model.ScheduledJob, now time.Time) string {
	utc := now.UTC()
	replacer := strings.NewReplacer(
		"{{date}}", utc.Format("2006-01-02"),
		"{{time}}", utc.Format("15:04"),
		"{{datetime}}", utc.Format("2006-01-02 15:04:05")+" UTC",
		"{{day}}", utc.Weekday().String(),
		"{{job.name}}", job.Name,
		"{{job.runCount}}", strconv.Itoa(job.RunCount+1),
	)
	return replacer.Replace(tmpl)
}
